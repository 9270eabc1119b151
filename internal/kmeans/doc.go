// Package kmeans implements k-means clustering for bucket partitioning.
//
// Used internally by the "kmeans" partition strategy to split oversized
// outlier buckets into child clusters.
package kmeans
