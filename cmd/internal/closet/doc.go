// Package closet manages closet items: per-user records that pair a title,
// seasonal categories and colors with an uploaded photo.
//
// Items live in a Store (Postgres or SQLite). Photos live on local disk in
// an ImageStore and are served resized to at most 800px wide.
package closet
