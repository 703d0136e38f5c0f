// Package rules evaluates configured country levies against a computed value base.
// Everything here is pure.
package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	levydomain "github.com/smallbiznis/clearline/internal/levy/domain"
	"github.com/smallbiznis/clearline/internal/money"
	tariffdomain "github.com/smallbiznis/clearline/internal/tariff/domain"
)

var (
	ErrUnknownRateType = errors.New("unknown_rate_type")
	ErrUnknownBasis    = errors.New("unknown_basis")
)

// Basis is the value tuple a levy may be charged on.
type Basis struct {
	FOB      decimal.Decimal
	CIF      decimal.Decimal
	Duty     decimal.Decimal
	Quantity decimal.Decimal
	Weight   decimal.Decimal
}

func (b Basis) Add(o Basis) Basis {
	return Basis{
		FOB:      b.FOB.Add(o.FOB),
		CIF:      b.CIF.Add(o.CIF),
		Duty:     b.Duty.Add(o.Duty),
		Quantity: b.Quantity.Add(o.Quantity),
		Weight:   b.Weight.Add(o.Weight),
	}
}

// Value resolves the basis value a levy is configured for.
func (b Basis) Value(kind levydomain.Basis) (decimal.Decimal, error) {
	switch kind {
	case levydomain.BasisFOB:
		return b.FOB, nil
	case levydomain.BasisCIF:
		return b.CIF, nil
	case levydomain.BasisDuty:
		return b.Duty, nil
	case levydomain.BasisQuantity:
		return b.Quantity, nil
	case levydomain.BasisWeight:
		return b.Weight, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownBasis, kind)
}

// Subject is who and when a levy is evaluated for.
type Subject struct {
	At            time.Time
	ConsigneeType string
}

// Line is one evaluated levy. Amount is unrounded.
type Line struct {
	Code         string
	Name         string
	RateType     levydomain.RateType
	Basis        levydomain.Basis
	Rate         decimal.Decimal
	BasisValue   decimal.Decimal
	Amount       decimal.Decimal
	DisplayOrder int
}

type Result struct {
	Lines []Line
	Total decimal.Decimal
}

// Eligible reports whether the levy is active, in its effective window at subject.At
// (both ends inclusive) and not exempt for the consignee's organization type.
func Eligible(levy levydomain.CountryLevy, subject Subject) bool {
	if !levy.IsActive {
		return false
	}
	if levy.EffectiveFrom != nil && subject.At.Before(*levy.EffectiveFrom) {
		return false
	}
	if levy.EffectiveTo != nil && subject.At.After(*levy.EffectiveTo) {
		return false
	}

	consignee := strings.TrimSpace(subject.ConsigneeType)
	if consignee == "" {
		return true
	}
	for _, exempt := range levy.ExemptOrganizationTypes {
		if strings.EqualFold(strings.TrimSpace(exempt), consignee) {
			return false
		}
	}
	return true
}

// AppliesToCode evaluates exactly one applicability branch. A nil code is
// in scope of an all-chapters levy and out of scope of an allow-list levy.
func AppliesToCode(levy levydomain.CountryLevy, code *string) bool {
	if levy.AppliesToAllChapters {
		if code == nil {
			return true
		}
		return !hasPrefixIn(tariffdomain.NormalizeCode(*code), levy.ExemptTariffCodes)
	}
	if code == nil {
		return false
	}
	return hasPrefixIn(tariffdomain.NormalizeCode(*code), levy.ChapterAllowList)
}

// Restricted reports whether the levy charges only part of a consignment.
func Restricted(levy levydomain.CountryLevy) bool {
	return !levy.AppliesToAllChapters || len(levy.ExemptTariffCodes) > 0
}

func hasPrefixIn(code string, prefixes []string) bool {
	if code == "" {
		return false
	}
	for _, prefix := range prefixes {
		p := tariffdomain.NormalizeCode(prefix)
		if p != "" && strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

// Charge computes the unrounded amount for a levy on basis.
func Charge(levy levydomain.CountryLevy, basis Basis) (decimal.Decimal, decimal.Decimal, error) {
	switch levy.RateType {
	case levydomain.RateTypeFixedAmount:
		return levy.Rate, decimal.Zero, nil
	case levydomain.RateTypePercentage:
		value, err := basis.Value(levy.Basis)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		return money.Percent(value, levy.Rate), value, nil
	case levydomain.RateTypePerUnit:
		value, err := basis.Value(levy.Basis)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		return levy.Rate.Mul(value), value, nil
	}
	return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownRateType, levy.RateType)
}

// Evaluate returns the levy's line and whether it applies to the given code.
func Evaluate(levy levydomain.CountryLevy, basis Basis, subject Subject, code *string) (Line, bool, error) {
	if !Eligible(levy, subject) || !AppliesToCode(levy, code) {
		return Line{}, false, nil
	}
	return line(levy, basis)
}

func line(levy levydomain.CountryLevy, basis Basis) (Line, bool, error) {
	amount, value, err := Charge(levy, basis)
	if err != nil {
		return Line{}, false, fmt.Errorf("levy %s: %w", levy.Code, err)
	}
	return Line{
		Code:         levy.Code,
		Name:         levy.Name,
		RateType:     levy.RateType,
		Basis:        levy.Basis,
		Rate:         levy.Rate,
		BasisValue:   value,
		Amount:       amount,
		DisplayOrder: levy.DisplayOrder,
	}, true, nil
}

// EvaluateAll evaluates a country's levy set for a single tariff code.
// No levies yields an empty result.
func EvaluateAll(levies []levydomain.CountryLevy, basis Basis, subject Subject, code *string) (Result, error) {
	return EvaluateScoped(levies, subject, func(levy levydomain.CountryLevy) (Basis, bool) {
		if !AppliesToCode(levy, code) {
			return Basis{}, false
		}
		return basis, true
	})
}

// EvaluateScoped evaluates each eligible levy on the basis scope returns for it.
// scope reports false when nothing the levy covers is present.
func EvaluateScoped(levies []levydomain.CountryLevy, subject Subject, scope func(levydomain.CountryLevy) (Basis, bool)) (Result, error) {
	result := Result{Lines: []Line{}, Total: decimal.Zero}
	for _, levy := range levies {
		if !Eligible(levy, subject) {
			continue
		}
		basis, ok := scope(levy)
		if !ok {
			continue
		}
		l, _, err := line(levy, basis)
		if err != nil {
			return Result{}, err
		}
		result.Lines = append(result.Lines, l)
	}

	sort.SliceStable(result.Lines, func(i, j int) bool {
		if result.Lines[i].DisplayOrder != result.Lines[j].DisplayOrder {
			return result.Lines[i].DisplayOrder < result.Lines[j].DisplayOrder
		}
		return result.Lines[i].Code < result.Lines[j].Code
	})
	for _, l := range result.Lines {
		result.Total = result.Total.Add(l.Amount)
	}
	return result, nil
}
