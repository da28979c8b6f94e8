package generator

import (
	"strings"

	"github.com/brianvoe/gofakeit/v7"
)

// formatFunctions maps OpenAPI string formats to generators.
var formatFunctions = map[string]func(*gofakeit.Faker) any{
	"uuid":      func(f *gofakeit.Faker) any { return f.UUID() },
	"email":     func(f *gofakeit.Faker) any { return f.Email() },
	"date":      func(f *gofakeit.Faker) any { return f.Date().Format("2006-01-02") },
	"date-time": func(f *gofakeit.Faker) any { return f.Date().Format("2006-01-02T15:04:05Z07:00") },
	"uri":       func(f *gofakeit.Faker) any { return f.URL() },
	"url":       func(f *gofakeit.Faker) any { return f.URL() },
	"ipv4":      func(f *gofakeit.Faker) any { return f.IPv4Address() },
	"ipv6":      func(f *gofakeit.Faker) any { return f.IPv6Address() },
	"password":  func(f *gofakeit.Faker) any { return f.Password(true, true, true, false, false, 12) },
	"phone":     func(f *gofakeit.Faker) any { return f.Phone() },
}

// nameRules are matched in order against the lowercased field name.
var nameRules = []struct {
	fragment string
	fn       func(*gofakeit.Faker) any
}{
	{"email", func(f *gofakeit.Faker) any { return f.Email() }},
	{"phone", func(f *gofakeit.Faker) any { return f.Phone() }},
	{"currency", func(f *gofakeit.Faker) any { return f.CurrencyShort() }},
	{"amount", func(f *gofakeit.Faker) any { return f.Price(1, 1000) }},
	{"firstname", func(f *gofakeit.Faker) any { return f.FirstName() }},
	{"lastname", func(f *gofakeit.Faker) any { return f.LastName() }},
	{"username", func(f *gofakeit.Faker) any { return f.Username() }},
	{"company", func(f *gofakeit.Faker) any { return f.Company() }},
	{"city", func(f *gofakeit.Faker) any { return f.City() }},
	{"country", func(f *gofakeit.Faker) any { return f.CountryAbr() }},
	{"address", func(f *gofakeit.Faker) any { return f.Street() }},
	{"url", func(f *gofakeit.Faker) any { return f.URL() }},
	{"date", func(f *gofakeit.Faker) any { return f.Date().Format("2006-01-02") }},
	{"description", func(f *gofakeit.Faker) any { return f.Sentence(6) }},
	{"comment", func(f *gofakeit.Faker) any { return f.Sentence(6) }},
	{"name", func(f *gofakeit.Faker) any { return f.Name() }},
	{"id", func(f *gofakeit.Faker) any { return f.UUID() }},
}

func nameFunction(name string) func(*gofakeit.Faker) any {
	lower := strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(name))

	for _, rule := range nameRules {
		if strings.HasSuffix(lower, rule.fragment) || strings.HasPrefix(lower, rule.fragment) {
			return rule.fn
		}
	}

	return nil
}
