package models

import (
	"errors"
	"fmt"
)

// SummarizeParams are the advanced parameters sent with a summarization request.
type SummarizeParams struct {
	// ChunkSize is the number of characters per chunk fed to the model.
	ChunkSize int `json:"chunkSize" yaml:"chunk_size" mapstructure:"chunk_size"`

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	ChunkOverlap int `json:"chunkOverlap" yaml:"chunk_overlap" mapstructure:"chunk_overlap"`

	// MaxLength caps the generated summary length.
	MaxLength int `json:"max_length" yaml:"max_length" mapstructure:"max_length"`

	TopP        float64 `json:"top_p" yaml:"top_p" mapstructure:"top_p"`
	TopK        int     `json:"top_k" yaml:"top_k" mapstructure:"top_k"`
	NumBeams    int     `json:"num_beams" yaml:"num_beams" mapstructure:"num_beams"`
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
}

// DefaultSummarizeParams returns the values a fresh session starts with.
func DefaultSummarizeParams() SummarizeParams {
	return SummarizeParams{
		ChunkSize:    10000,
		ChunkOverlap: 1000,
		MaxLength:    10000,
		TopP:         0.9,
		TopK:         100,
		NumBeams:     2,
		Temperature:  0.5,
	}
}

// Validate checks every parameter against its accepted range.
func (p SummarizeParams) Validate() error {
	var errs []error
	checkInt := func(name string, v, lo, hi int) {
		if v < lo || v > hi {
			errs = append(errs, fmt.Errorf("%s must be between %d and %d, got %d", name, lo, hi, v))
		}
	}
	checkFloat := func(name string, v, lo, hi float64) {
		if v < lo || v > hi {
			errs = append(errs, fmt.Errorf("%s must be between %g and %g, got %g", name, lo, hi, v))
		}
	}

	checkInt("chunk_size", p.ChunkSize, 1000, 10000)
	checkInt("chunk_overlap", p.ChunkOverlap, 50, 1000)
	checkInt("max_length", p.MaxLength, 50, 10000)
	checkFloat("top_p", p.TopP, 0, 1)
	checkInt("top_k", p.TopK, 0, 1000)
	checkInt("num_beams", p.NumBeams, 0, 10)
	checkFloat("temperature", p.Temperature, 0, 1)

	return errors.Join(errs...)
}
