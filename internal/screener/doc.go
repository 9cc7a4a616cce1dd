// Package screener fetches statement export workbooks from the screener.in
// web application.
//
// The site is a Django application: a session starts with a GET of the login
// form (carrying csrfmiddlewaretoken), followed by a form POST. The export is
// a POST to the form action of the company page's "Export to Excel" button,
// authorised by the csrftoken cookie echoed in X-CSRFToken and a Referer equal
// to the company page.
package screener
