package repository

import (
	"errors"
	"fmt"

	"github.com/maheshrc27/social-scheduler/internal/models"
)

// ErrNotFound is returned by writes that matched no row.
var ErrNotFound = errors.New("record not found")

var ErrUnknownStatus = errors.New("unknown post status")

func checkStatus(status models.PostStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	return nil
}
