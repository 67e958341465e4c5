package parser

import (
	"fmt"

	"github.com/maltedev/catawiki-seller-parser/internal/models"
)

type Parser interface {
	ParseProfilePage(html string) (*models.SellerProfile, error)
	ParseProfileBytes(data []byte) (*models.SellerProfile, error)
}

// ParseError is returned when a document cannot be decoded or tokenized.
// Missing page elements never produce a ParseError.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse HTML: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
