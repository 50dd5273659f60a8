// Package parser builds banking systems from the tabular and structured
// input formats of the lab: a balance-sheet table plus an exposure list or
// dense matrix, or a single JSON document carrying both. Every system
// returned satisfies the network invariants; malformed input surfaces as
// *network.ValidationError or a wrapped decode error.
package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"contagion-lab/internal/network"
)

// Parser errors.
var (
	ErrMissingColumn = errors.New("missing required column")
	ErrEmptyInput    = errors.New("empty input")
	ErrRaggedMatrix  = errors.New("exposure matrix is not square in bank order")
)

// Required balance-sheet columns.
const (
	colBankName = "bank_name"
	colExtAsset = "external_asset"
	colExtLiab  = "external_liabilities"
)

// Optional per-bank parameter columns, parsed into network.Params.
const (
	colSigmaAsset   = "sigma_asset"
	colSigmaEquity  = "sigma_equity"
	colRecoveryRate = "recovery_rate"
)

// Extras holds unrecognized balance-sheet columns per bank name, in the
// order banks appear in the input.
type Extras map[string]map[string]string

// ParseCSV reads a balance-sheet table and an exposures source and returns
// the validated system plus any extra balance-sheet columns.
//
// The balance-sheet file needs a header with at least bank_name,
// external_asset and external_liabilities; sigma_asset, sigma_equity and
// recovery_rate are picked up as model parameters when present. The
// exposures source is an adjacency list when its header starts with
// "lender" (lender,borrower,amount), otherwise a headerless dense
// creditor×debtor matrix in bank order. Duplicate (lender, borrower) rows
// are aggregated.
func ParseCSV(balanceSheets, exposures io.Reader, delimiter rune) (*network.System, Extras, error) {
	banks, extras, err := parseBalanceSheets(balanceSheets, delimiter)
	if err != nil {
		return nil, nil, err
	}

	exps, err := parseExposures(exposures, delimiter, banks)
	if err != nil {
		return nil, nil, err
	}

	sys, err := network.NewSystem(banks, exps)
	if err != nil {
		return nil, nil, err
	}
	return sys, extras, nil
}

func parseBalanceSheets(r io.Reader, delimiter rune) ([]*network.Bank, Extras, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read balance sheets: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: balance sheets", ErrEmptyInput)
	}

	header := rows[0]
	colIdx := make(map[string]int, len(header))
	for i, field := range header {
		colIdx[field] = i
	}
	for _, required := range []string{colBankName, colExtAsset, colExtLiab} {
		if _, ok := colIdx[required]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	known := map[string]bool{
		colBankName: true, colExtAsset: true, colExtLiab: true,
		colSigmaAsset: true, colSigmaEquity: true, colRecoveryRate: true,
	}

	banks := make([]*network.Bank, 0, len(rows)-1)
	extras := make(Extras)
	for line, row := range rows[1:] {
		name := row[colIdx[colBankName]]
		extAsset, err := parseField(row, colIdx, colExtAsset, line+2)
		if err != nil {
			return nil, nil, err
		}
		extLiab, err := parseField(row, colIdx, colExtLiab, line+2)
		if err != nil {
			return nil, nil, err
		}

		var params network.Params
		if params.Sigma, err = parseOptField(row, colIdx, colSigmaAsset, line+2); err != nil {
			return nil, nil, err
		}
		if params.SigmaEquity, err = parseOptField(row, colIdx, colSigmaEquity, line+2); err != nil {
			return nil, nil, err
		}
		if params.RecoveryRate, err = parseOptField(row, colIdx, colRecoveryRate, line+2); err != nil {
			return nil, nil, err
		}

		banks = append(banks, network.NewBank(name, extAsset, extLiab, params))

		for _, field := range header {
			if known[field] {
				continue
			}
			if extras[name] == nil {
				extras[name] = make(map[string]string)
			}
			extras[name][field] = row[colIdx[field]]
		}
	}
	return banks, extras, nil
}

func parseField(row []string, colIdx map[string]int, field string, line int) (float64, error) {
	v, err := strconv.ParseFloat(row[colIdx[field]], 64)
	if err != nil {
		return 0, fmt.Errorf("balance sheets line %d, column %s: %w", line, field, err)
	}
	return v, nil
}

func parseOptField(row []string, colIdx map[string]int, field string, line int) (float64, error) {
	idx, ok := colIdx[field]
	if !ok || row[idx] == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(row[idx], 64)
	if err != nil {
		return 0, fmt.Errorf("balance sheets line %d, column %s: %w", line, field, err)
	}
	return v, nil
}

func parseExposures(r io.Reader, delimiter rune, banks []*network.Bank) ([]network.Exposure, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read exposures: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	if rows[0][0] == "lender" {
		return parseExposureList(rows[1:])
	}
	return parseExposureMatrix(rows, banks)
}

func parseExposureList(rows [][]string) ([]network.Exposure, error) {
	exps := make([]network.Exposure, 0, len(rows))
	for line, row := range rows {
		if len(row) < 3 {
			return nil, fmt.Errorf("exposures line %d: want lender,borrower,amount, got %d fields", line+2, len(row))
		}
		amount, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("exposures line %d: %w", line+2, err)
		}
		exps = append(exps, network.Exposure{Creditor: row[0], Debtor: row[1], Amount: amount})
	}
	return exps, nil
}

func parseExposureMatrix(rows [][]string, banks []*network.Bank) ([]network.Exposure, error) {
	if len(rows) != len(banks) {
		return nil, fmt.Errorf("%w: %d rows for %d banks", ErrRaggedMatrix, len(rows), len(banks))
	}
	var exps []network.Exposure
	for i, row := range rows {
		if len(row) != len(banks) {
			return nil, fmt.Errorf("%w: row %d has %d columns for %d banks", ErrRaggedMatrix, i+1, len(row), len(banks))
		}
		for j, cell := range row {
			amount, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("exposures row %d column %d: %w", i+1, j+1, err)
			}
			if amount == 0 {
				continue
			}
			exps = append(exps, network.Exposure{
				Creditor: banks[i].Name,
				Debtor:   banks[j].Name,
				Amount:   amount,
			})
		}
	}
	return exps, nil
}
