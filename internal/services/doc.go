// Package services holds the error taxonomy and context annotations shared by
// stage clients and the pipeline, plus the clients for external processing
// tools in its subpackages.
package services
