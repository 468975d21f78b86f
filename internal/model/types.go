package model

import (
	"strings"
	"time"

	"bp-tracker/internal/common"
)

// DateLayout is the only layout record dates are stored in. Filtering
// compares dates as strings, which is correct only while every stored value
// and every bound share this zero-padded, fixed-width UTC form.
const DateLayout = "2006-01-02T15:04:05.000Z"

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Record is one blood-pressure reading. ID and Date are assigned by the
// store and never change afterwards.
type Record struct {
	ID        int64  `json:"id"`
	Date      string `json:"date"`
	Systolic  int    `json:"systolic"`
	Diastolic int    `json:"diastolic"`
	Pulse     *int   `json:"pulse"`
	Name      string `json:"name"`
}

// Meta is the pagination envelope returned with every list.
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
}

type RecordPage struct {
	Data []Record `json:"data"`
	Meta Meta     `json:"meta"`
}

// RecordInput is the create-record request schema. Pointer fields let the
// validator tell "absent" from "zero".
type RecordInput struct {
	Systolic  *int    `json:"systolic" binding:"required,gt=0"`
	Diastolic *int    `json:"diastolic" binding:"required,gt=0"`
	Pulse     *int    `json:"pulse" binding:"omitempty,gt=0"`
	Name      *string `json:"name" binding:"required"`

	// Date is accepted for compatibility with clients that send one and is
	// otherwise ignored: the store always stamps the insert time.
	Date *string `json:"date,omitempty"`
}

// Validate returns the first *common.ValidationError found, or nil.
func (in RecordInput) Validate() error {
	if err := positive("systolic", in.Systolic, true); err != nil {
		return err
	}
	if err := positive("diastolic", in.Diastolic, true); err != nil {
		return err
	}
	if err := positive("pulse", in.Pulse, false); err != nil {
		return err
	}
	if in.Name == nil {
		return common.NewValidationError("name", "is required")
	}
	if strings.TrimSpace(*in.Name) == "" {
		return common.NewValidationError("name", "must not be empty")
	}
	return nil
}

func positive(field string, v *int, required bool) error {
	if v == nil {
		if required {
			return common.NewValidationError(field, "is required")
		}
		return nil
	}
	if *v <= 0 {
		return common.NewValidationError(field, "must be a positive integer")
	}
	return nil
}

// NewRecord is the client-side create payload.
type NewRecord struct {
	Systolic  int    `json:"systolic"`
	Diastolic int    `json:"diastolic"`
	Pulse     *int   `json:"pulse,omitempty"`
	Name      string `json:"name"`
}

// Input converts the payload into the server schema.
func (n NewRecord) Input() RecordInput {
	sys, dia, name := n.Systolic, n.Diastolic, n.Name
	in := RecordInput{Systolic: &sys, Diastolic: &dia, Name: &name}
	if n.Pulse != nil {
		p := *n.Pulse
		in.Pulse = &p
	}
	return in
}

const (
	EventRecordCreated = "record-created"
	EventRecordDeleted = "record-deleted"
)

// Event is pushed to update-feed subscribers after a successful mutation.
type Event struct {
	Type   string  `json:"type"`
	Event  string  `json:"event,omitempty"`
	Record *Record `json:"record,omitempty"`
	ID     int64   `json:"id,omitempty"`
}
