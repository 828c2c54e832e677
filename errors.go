package linefit

import (
	"errors"

	"github.com/helixml/linefit/application/service"
)

// Exported errors for library consumers.
var (
	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = service.ErrClientClosed

	// ErrNoDatabase indicates an operation that needs the fit database
	// on a client configured without one.
	ErrNoDatabase = service.ErrNoFitStore

	// ErrUnknownOptimizer indicates an optimizer name other than anneal or external.
	ErrUnknownOptimizer = errors.New("linefit: unknown optimizer")

	// ErrNoDataset indicates a fit file that names no spectrum file.
	ErrNoDataset = errors.New("linefit: fit file names no spectrum")
)
