package pricing

import "strings"

// Price is a plan's price in one currency.
type Price struct {
	CurrencyCode string  `bson:"currency_code" json:"currency_code"`
	Value        float64 `bson:"value" json:"value"`
}

// Amount is a storage size such as {value: 5, unit: "GB"}.
type Amount struct {
	Value float64 `bson:"value" json:"value"`
	Unit  string  `bson:"unit" json:"unit"`
}

// Plan is one row of a pricing collection.
type Plan struct {
	Count   float64 `bson:"count"`
	Amount  *Amount `bson:"amount"`
	Pricing []Price `bson:"pricing"`
}

// Category groups the plans of one pricing collection, e.g. "report_pricing".
type Category struct {
	Category  string `bson:"category"`
	Documents []Plan `bson:"documents"`
}

// PlanPrice is a plan priced in the caller's currency. Document plans carry Amount, the
// others Count.
type PlanPrice struct {
	Count  *float64 `json:"count,omitempty"`
	Amount *Amount  `json:"amount,omitempty"`
	Price  float64  `json:"price"`
}

type CountryPrices struct {
	Category     string      `json:"category"`
	CurrencyCode string      `json:"currency_code"`
	Plans        []PlanPrice `json:"plans"`
}

const documentCategory = "Document Pricing"

// CurrencyFor is INR for India and USD everywhere else.
func CurrencyFor(country string) string {
	if strings.EqualFold(strings.TrimSpace(country), "india") {
		return "INR"
	}
	return "USD"
}

// categoryTitle turns "report_pricing" into "Report Pricing".
func categoryTitle(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
		}
	}
	return strings.Join(words, " ")
}

// ForCountry prices every plan in the country's currency. Plans without a price in that
// currency are left out, and so are categories left empty.
func ForCountry(country string, categories []Category) []CountryPrices {
	currency := CurrencyFor(country)
	out := []CountryPrices{}
	for _, cat := range categories {
		title := categoryTitle(cat.Category)
		var plans []PlanPrice
		for _, p := range cat.Documents {
			price, ok := priceIn(p.Pricing, currency)
			if !ok {
				continue
			}
			if title == documentCategory {
				amount := p.Amount
				if amount == nil {
					amount = &Amount{}
				}
				plans = append(plans, PlanPrice{Amount: amount, Price: price})
				continue
			}
			count := p.Count
			plans = append(plans, PlanPrice{Count: &count, Price: price})
		}
		if len(plans) > 0 {
			out = append(out, CountryPrices{Category: title, CurrencyCode: currency, Plans: plans})
		}
	}
	return out
}

func priceIn(prices []Price, currency string) (float64, bool) {
	for _, p := range prices {
		if p.CurrencyCode == currency {
			return p.Value, true
		}
	}
	return 0, false
}
