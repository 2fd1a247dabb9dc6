// Package application contains the use cases of the request pipeline:
// admission (resolve rule + atomic take + bounded wait), authentication
// (allow-list + token verification) and concurrency slots.
//
// It depends only on the domain package and knows nothing about net/http.
package application
