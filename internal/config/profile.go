package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile holds the marketplace template constants written into every
// listing row and upload line.
type Profile struct {
	SiteHeader        string `yaml:"site_header"`
	Action            string `yaml:"action"`
	Format            string `yaml:"format"`
	ConditionID       int    `yaml:"condition_id"`
	TitleBudget       int    `yaml:"title_budget"`
	StoreCategory     int    `yaml:"store_category"`
	CountryCode       string `yaml:"country_code"`
	Location          string `yaml:"location"`
	PostalCode        string `yaml:"postal_code"`
	PolicyPayment     string `yaml:"policy_payment"`
	PolicyShipping    string `yaml:"policy_shipping"`
	PolicyReturn      string `yaml:"policy_return"`
	PackageType       string `yaml:"package_type"`
	MeasurementSystem string `yaml:"measurement_system"`
	PackageLength     int    `yaml:"package_length"`
	PackageWidth      int    `yaml:"package_width"`
	PackageDepth      int    `yaml:"package_depth"`
	TemplateVersion   string `yaml:"template_version"`
}

func DefaultProfile() Profile {
	return Profile{
		SiteHeader:        "Action(SiteID=UK|Country=GB|Currency=GBP|Version=1193|CC=UTF-8)",
		Action:            "Draft",
		Format:            "FixedPrice",
		ConditionID:       1500,
		TitleBudget:       70,
		StoreCategory:     20685,
		CountryCode:       "GB",
		Location:          "Dartford",
		PostalCode:        "DA4 9EW",
		PolicyPayment:     "252103073016",
		PolicyShipping:    "254956651016",
		PolicyReturn:      "Return accepted Copy",
		PackageType:       "Package/thick envelope",
		MeasurementSystem: "cm",
		PackageLength:     45,
		PackageWidth:      45,
		PackageDepth:      16,
		TemplateVersion:   "S3G TEP",
	}
}

// LoadProfile reads a YAML profile over the defaults. An empty path or a
// missing file yields the defaults; a file that does not parse is an error.
func LoadProfile(path string) (Profile, error) {
	profile := DefaultProfile()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return profile, nil
	}
	if err != nil {
		return Profile{}, err
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Profile{}, fmt.Errorf("listing profile %s: %w", path, err)
	}
	if profile.TitleBudget <= 0 {
		profile.TitleBudget = DefaultProfile().TitleBudget
	}
	return profile, nil
}
