package models

import (
	"strings"

	"hospops/internal/apperr"
)

// RecordStatus is the activation state of master data records.
type RecordStatus string

const (
	StatusActive   RecordStatus = "ACTIVE"
	StatusInactive RecordStatus = "INACTIVE"
)

// Gender of a patient.
type Gender string

const (
	GenderMale    Gender = "MALE"
	GenderFemale  Gender = "FEMALE"
	GenderUnknown Gender = ""
)

// Upload is a binary attachment sent as the "file" part of a multipart form.
type Upload struct {
	Name string
	Data []byte
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.Invalid(field, "is required")
	}
	return nil
}

func requireID(field string, id int64) error {
	if id <= 0 {
		return apperr.Invalid(field, "is required")
	}
	return nil
}

func validStatus(s RecordStatus) error {
	switch s {
	case StatusActive, StatusInactive, "":
		return nil
	}
	return apperr.Invalid("status", "unknown status %q", s)
}
