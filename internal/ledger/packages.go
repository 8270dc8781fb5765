package ledger

import "errors"

// ErrUnknownPackage is returned for a package ID not in the catalogue.
var ErrUnknownPackage = errors.New("unknown credit package")

// Package is a purchasable bundle of scan credits.
type Package struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Credits    int    `json:"credits"`
	Bonus      int    `json:"bonus"`
	PriceCents int    `json:"price_cents"`
}

// Packages is the fixed catalogue offered on the pricing page.
var Packages = []Package{
	{ID: "starter", Name: "Starter", Credits: 50, Bonus: 0, PriceCents: 1900},
	{ID: "growth", Name: "Growth", Credits: 200, Bonus: 20, PriceCents: 4900},
	{ID: "agency", Name: "Agency", Credits: 1000, Bonus: 150, PriceCents: 19900},
}

// FindPackage looks up a package by ID.
func FindPackage(id string) (Package, error) {
	for _, p := range Packages {
		if p.ID == id {
			return p, nil
		}
	}
	return Package{}, ErrUnknownPackage
}
