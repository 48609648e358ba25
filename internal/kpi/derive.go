// Package kpi derives financial KPIs from a month of P&L line items.
package kpi

import (
	"math"
	"sort"
	"strings"

	"github.com/Veraticus/forecast-flow/internal/model"
)

// KPI aliases.
const (
	AliasProfit              = "PROF"
	AliasGrossProfitMargin   = "GPM"
	AliasOperatingMargin     = "OPM"
	AliasNetProfitMargin     = "NPM"
	AliasQuickRatio          = "QR"
	AliasSales               = "SALES"
	AliasReturnOnSales       = "ROS"
	AliasDaysSales           = "DSO"
	AliasReceivablesTurnover = "RT"
	AliasCost                = "COST"
	AliasCOGSRatio           = "COGSR"
	AliasDaysPayable         = "DPO"
	AliasOverheadRatio       = "OHR"
)

// Aliases lists every derived KPI in display order.
var Aliases = []string{
	AliasProfit, AliasGrossProfitMargin, AliasOperatingMargin, AliasNetProfitMargin, AliasQuickRatio,
	AliasSales, AliasReturnOnSales, AliasDaysSales, AliasReceivablesTurnover,
	AliasCost, AliasCOGSRatio, AliasDaysPayable, AliasOverheadRatio,
}

// otherIncomeCodes are booked under the sales prefix but count as other income.
var otherIncomeCodes = map[string]bool{
	"5000-A015": true,
	"5000-M004": true,
}

// DefaultCategories maps each alias to its flagging category.
func DefaultCategories() map[string]string {
	return map[string]string{
		AliasProfit:              model.KPICategoryProfit,
		AliasGrossProfitMargin:   model.KPICategoryProfit,
		AliasOperatingMargin:     model.KPICategoryProfit,
		AliasNetProfitMargin:     model.KPICategoryProfit,
		AliasQuickRatio:          model.KPICategoryProfit,
		AliasSales:               model.KPICategorySales,
		AliasReturnOnSales:       model.KPICategorySales,
		AliasDaysSales:           model.KPICategorySales,
		AliasReceivablesTurnover: model.KPICategorySales,
		AliasCost:                model.KPICategoryCost,
		AliasCOGSRatio:           model.KPICategoryCost,
		AliasDaysPayable:         model.KPICategoryCost,
		AliasOverheadRatio:       model.KPICategoryCost,
	}
}

// buckets are the line-item sums the formulas are built from. A line item
// may contribute to several buckets.
type buckets struct {
	salesRevenue      float64
	salesAdjustments  float64
	otherIncomes      float64
	cogs              float64
	operatingExpenses float64
	financialExpenses float64
	allExpenses       float64
	overhead          float64
}

func sum(snapshot map[string]*float64) buckets {
	codes := make([]string, 0, len(snapshot))
	for code := range snapshot {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var b buckets
	for _, code := range codes {
		value := snapshot[code]
		if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) {
			continue
		}
		v := *value

		if strings.HasPrefix(code, "5000-") && !otherIncomeCodes[code] {
			b.salesRevenue += v
		}
		if strings.HasPrefix(code, "5500") {
			b.salesAdjustments += v
		}
		if strings.HasPrefix(code, "8") || otherIncomeCodes[code] {
			b.otherIncomes += v
		}
		if strings.HasPrefix(code, "6") {
			b.cogs += v
		}
		if strings.HasPrefix(code, "901") || strings.HasPrefix(code, "902") {
			b.operatingExpenses += v
		}
		if strings.HasPrefix(code, "900") {
			b.financialExpenses += v
		}
		if strings.HasPrefix(code, "9") {
			b.allExpenses += v
		}
		if strings.HasPrefix(code, "902") || strings.HasPrefix(code, "9000-D") {
			b.overhead += v
		}
	}
	return b
}

// Derive computes every KPI alias from a code to value snapshot. Ratios
// with a zero denominator are nil, as are the aliases the P&L cannot
// resolve; every alias is always present in the result.
func Derive(snapshot map[string]*float64) map[string]*float64 {
	b := sum(snapshot)

	netSales := b.salesRevenue - b.salesAdjustments
	allIncomes := b.salesRevenue + b.otherIncomes - b.salesAdjustments
	expenses := b.operatingExpenses + b.financialExpenses
	operatingProfit := netSales - b.cogs - b.operatingExpenses

	return map[string]*float64{
		AliasProfit:              money(allIncomes - b.cogs - expenses),
		AliasGrossProfitMargin:   percent(b.salesRevenue-b.cogs, b.salesRevenue),
		AliasOperatingMargin:     percent(operatingProfit, netSales),
		AliasNetProfitMargin:     percent(allIncomes-b.cogs-expenses, allIncomes),
		AliasQuickRatio:          nil,
		AliasSales:               money(netSales),
		AliasReturnOnSales:       percent(operatingProfit, netSales),
		AliasDaysSales:           nil,
		AliasReceivablesTurnover: nil,
		AliasCost:                money(b.cogs + b.allExpenses),
		AliasCOGSRatio:           percent(b.cogs, netSales),
		AliasDaysPayable:         nil,
		AliasOverheadRatio:       percent(b.overhead, netSales),
	}
}

func money(v float64) *float64 {
	return model.Float(model.Round(v, model.MoneyPlaces))
}

func percent(numerator, denominator float64) *float64 {
	if denominator == 0 {
		return nil
	}
	return model.Float(model.Round(numerator/denominator*100, model.RatioPlaces))
}
