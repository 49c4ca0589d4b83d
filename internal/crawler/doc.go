// Package crawler defines the types and collaborator interfaces shared by the
// fetch pipeline and the ranking pipeline.
package crawler
