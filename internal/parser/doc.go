// Package parser turns quotes-site markup into crawler records using goquery.
//
// Listing pages are expected to carry one div.quote block per quote with
// span.text, small.author, an author link and a.tag labels. Author pages
// carry span.author-born-date, span.author-born-location and
// div.author-description. Absent elements yield empty strings; only an
// unusable base URL is reported as an error.
package parser
