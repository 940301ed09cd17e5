// Package ingest loads the daily plan document produced by the external
// planning system and writes it into the store as one Plan tree.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Document is the plan tree as delivered by the planning API.
type Document struct {
	Orders []Order `json:"orders"`
}

type Order struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	LineID        string   `json:"productionLineId"`
	TotalMass     *float64 `json:"totalMass"`
	TotalLength   *float64 `json:"totalLength"`
	ExecutionTime *int     `json:"executionTime"`
	Instructions  string   `json:"instructions"`
	Bundles       []Bundle `json:"bundles"`
}

type Bundle struct {
	ID            string    `json:"bundleId"`
	TotalMass     *float64  `json:"totalMass"`
	TotalLength   *float64  `json:"totalLength"`
	ExecutionTime *int      `json:"executionTime"`
	Instructions  string    `json:"instructions"`
	Products      []Product `json:"products"`
}

type Product struct {
	ID           string   `json:"productId"`
	Profile      string   `json:"profile"`
	Width        *float64 `json:"width"`
	Thickness    *float64 `json:"thickness"`
	Length       *float64 `json:"length"`
	Quantity     *int     `json:"quantity"`
	Color        string   `json:"color"`
	RollNumber   *int     `json:"rollNumber"`
	Instructions string   `json:"instructions"`
}

// Violation is one rejected field.
type Violation struct {
	Path    string
	Message string
}

func (v Violation) String() string { return v.Path + ": " + v.Message }

// ValidationError lists every violation found in a document.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	lines := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		lines = append(lines, v.String())
	}
	return fmt.Sprintf("invalid plan document (%d violations): %s", len(e.Violations), strings.Join(lines, "; "))
}

func (e *ValidationError) add(path, msg string) {
	e.Violations = append(e.Violations, Violation{Path: path, Message: msg})
}

func (e *ValidationError) orNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}

// Decode parses a plan document. Both {"orders": [...]} and a bare order
// array are accepted. Type mismatches are reported as a ValidationError.
func Decode(r io.Reader) (Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	var doc Document
	if len(raw) > 0 && raw[0] == '[' {
		err = json.Unmarshal(raw, &doc.Orders)
	} else {
		err = json.Unmarshal(raw, &doc)
	}
	if err == nil {
		return doc, nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		path := typeErr.Field
		if path == "" {
			path = "orders"
		}
		verr := &ValidationError{}
		verr.add(path, fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value))
		return Document{}, verr
	}
	return Document{}, fmt.Errorf("decode document: %w", err)
}

// Validate checks the whole tree and reports every violation at once.
func (d Document) Validate() error {
	verr := &ValidationError{}
	if len(d.Orders) == 0 {
		verr.add("orders", "required")
	}
	for i, o := range d.Orders {
		p := fmt.Sprintf("orders[%d]", i)
		requireString(verr, p+".id", o.ID)
		requireString(verr, p+".name", o.Name)
		requireString(verr, p+".productionLineId", o.LineID)
		requireNonNegative(verr, p+".totalMass", o.TotalMass)
		requireNonNegative(verr, p+".totalLength", o.TotalLength)
		requireNonNegativeInt(verr, p+".executionTime", o.ExecutionTime)
		if len(o.Bundles) == 0 {
			verr.add(p+".bundles", "required")
		}
		for j, b := range o.Bundles {
			bp := fmt.Sprintf("%s.bundles[%d]", p, j)
			requireString(verr, bp+".bundleId", b.ID)
			requireNonNegative(verr, bp+".totalMass", b.TotalMass)
			requireNonNegative(verr, bp+".totalLength", b.TotalLength)
			requireNonNegativeInt(verr, bp+".executionTime", b.ExecutionTime)
			if len(b.Products) == 0 {
				verr.add(bp+".products", "required")
			}
			for k, pr := range b.Products {
				pp := fmt.Sprintf("%s.products[%d]", bp, k)
				requireString(verr, pp+".productId", pr.ID)
				requireString(verr, pp+".profile", pr.Profile)
				requirePositive(verr, pp+".width", pr.Width)
				requirePositive(verr, pp+".thickness", pr.Thickness)
				requirePositive(verr, pp+".length", pr.Length)
				switch {
				case pr.Quantity == nil:
					verr.add(pp+".quantity", "required")
				case *pr.Quantity <= 0:
					verr.add(pp+".quantity", "must be positive")
				}
				requireNonNegativeInt(verr, pp+".rollNumber", pr.RollNumber)
			}
		}
	}
	return verr.orNil()
}

func requireString(verr *ValidationError, path, v string) {
	if strings.TrimSpace(v) == "" {
		verr.add(path, "required")
	}
}

func requireNonNegative(verr *ValidationError, path string, v *float64) {
	switch {
	case v == nil:
		verr.add(path, "required")
	case *v < 0:
		verr.add(path, "must not be negative")
	}
}

func requirePositive(verr *ValidationError, path string, v *float64) {
	switch {
	case v == nil:
		verr.add(path, "required")
	case *v <= 0:
		verr.add(path, "must be positive")
	}
}

func requireNonNegativeInt(verr *ValidationError, path string, v *int) {
	switch {
	case v == nil:
		verr.add(path, "required")
	case *v < 0:
		verr.add(path, "must not be negative")
	}
}
