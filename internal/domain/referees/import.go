package referees

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type ImportResult struct {
	Created int      `json:"created"`
	Skipped []string `json:"skipped"`
}

// ParseRegistryCSV reads an employee_number,full_name file in row order.
// Column order is free and a UTF-8 byte order mark is ignored. Blank lines
// are skipped; a row missing either field is an error.
func ParseRegistryCSV(r io.Reader) ([]Referee, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	numberCol, nameCol := -1, -1
	for i, column := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(column, "\ufeff"))) {
		case "employee_number", "employeenumber", "id":
			numberCol = i
		case "full_name", "fullname", "name":
			nameCol = i
		}
	}
	if numberCol < 0 || nameCol < 0 {
		return nil, errors.New("header must name employee_number and full_name columns")
	}

	var out []Referee
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)
		if numberCol >= len(record) || nameCol >= len(record) {
			return nil, fmt.Errorf("line %d: missing columns", line)
		}
		referee, err := clean(Referee{EmployeeNumber: record[numberCol], FullName: record[nameCol]})
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, referee)
	}
}

// Import registers each referee in order. Employee numbers that are already
// registered are reported as skipped; any other failure stops the import.
func (s *Service) Import(ctx context.Context, batch []Referee) (ImportResult, error) {
	result := ImportResult{Skipped: []string{}}
	for _, referee := range batch {
		_, err := s.CreateReferee(ctx, referee)
		if errors.Is(err, ErrDuplicateKey) {
			result.Skipped = append(result.Skipped, strings.TrimSpace(referee.EmployeeNumber))
			continue
		}
		if err != nil {
			return result, err
		}
		result.Created++
	}
	slog.Info("referee registry imported", "created", result.Created, "skipped", len(result.Skipped))
	return result, nil
}
