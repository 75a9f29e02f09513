package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/nexis/internal/domain"
)

// recordFile is the on-disk shape of a scoring request.
type recordFile struct {
	SubjectID           string                   `yaml:"subjectId"`
	DocumentationMonths *int                     `yaml:"documentationMonths"`
	Record              *domain.BehavioralRecord `yaml:"record"`
}

// flatFile is a record with the request keys alongside its fields.
type flatFile struct {
	SubjectID               string `yaml:"subjectId"`
	DocumentationMonths     *int   `yaml:"documentationMonths"`
	domain.BehavioralRecord `yaml:",inline"`
}

// readRequest loads a scoring request from path, or stdin for "-".
func readRequest(path string, stdin io.Reader) (*domain.AssessmentRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return parseRequest(data)
}

// parseRequest decodes JSON or YAML. A document without a record key is
// read as a flat record and must not carry unknown keys.
func parseRequest(data []byte) (*domain.AssessmentRequest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("record file is empty")
	}

	var file recordFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse record file: %w", err)
	}

	req := &domain.AssessmentRequest{
		SubjectID:           file.SubjectID,
		DocumentationMonths: file.DocumentationMonths,
	}
	if file.Record != nil {
		req.Record = *file.Record
		return req, nil
	}

	var flat flatFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&flat); err != nil {
		return nil, fmt.Errorf("failed to parse record: %w", err)
	}
	req.Record = flat.BehavioralRecord
	return req, nil
}
