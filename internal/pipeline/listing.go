package pipeline

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"lotlister/internal"
)

var (
	ErrMissingManifest = errors.New("manifest is required")
	ErrMissingInvoices = errors.New("at least one invoice is required")
	ErrMissingDate     = errors.New("listing date is required")
	ErrInvalidDate     = errors.New("listing date must be YYYY-MM-DD")
)

const (
	tagLimit      = 15
	metaDescRunes = 150
)

var titleFillers = map[string]struct{}{
	"with": {}, "for": {}, "the": {}, "and": {}, "&": {}, "-": {}, "a": {}, "an": {},
	"featuring": {}, "includes": {}, "comes with": {}, "perfect for": {}, "that": {},
}

var (
	reTitleSplit = regexp.MustCompile(`[\s,]+`)
	reNonWord    = regexp.MustCompile(`[^\w\s]`)
	reTagStrip   = regexp.MustCompile(`[^\w\s,]`)

	reSizeMeasure = regexp.MustCompile(`\b(size[:\s]*)?(\d+(\.\d+)?)\s*(uk|eu|us|cm|mm|ml|l|kg|g|oz|inches?|in)?\b`)
	reSizeLetter  = regexp.MustCompile(`\b(small|medium|large|x-?large|xx-?large|xs|s|m|l|xl|xxl|xxxl)\b`)
	reColor       = regexp.MustCompile(`\b(colour?[:\s]*)?(black|white|red|blue|green|yellow|pink|purple|orange|grey|gray|brown|beige|navy|gold|silver|multi-?colou?r)\b`)
	reMaterial    = regexp.MustCompile(`\b(material[:\s]*)?(cotton|polyester|leather|wool|silk|denim|suede|nylon|plastic|metal|wood|glass|ceramic|rubber)\b`)
	reGender      = regexp.MustCompile(`\b(men'?s?|women'?s?|unisex|boys?|girls?|kids?|children'?s?)\b`)
	reAgeGroup    = regexp.MustCompile(`\b(adult|child|baby|toddler|infant|teen)\b`)
)

// ShortenTitle drops filler words and keeps whole words, in order, until the
// next word would push the title past budget characters.
func ShortenTitle(title string, budget int) string {
	if title == "" {
		return ""
	}
	var kept []string
	length := 0
	for _, word := range reTitleSplit.Split(title, -1) {
		if isFiller(word) {
			continue
		}
		n := len([]rune(word))
		if length+n+1 > budget {
			break
		}
		kept = append(kept, word)
		length += n + 1
	}
	out := []rune(strings.Join(kept, " "))
	if len(out) > budget {
		out = out[:budget]
	}
	return strings.TrimSpace(string(out))
}

func isFiller(word string) bool {
	if _, ok := titleFillers[strings.ToLower(word)]; ok {
		return true
	}
	clean := strings.ToLower(reNonWord.ReplaceAllString(word, ""))
	if clean == "" {
		return false
	}
	_, ok := titleFillers[clean]
	return ok
}

// ListingTitle appends the rounded-up RRP note to a shortened title.
func ListingTitle(short string, rrp float64) string {
	return fmt.Sprintf("%s RRP £%d", short, int(math.Ceil(rrp)))
}

// GenerateTags returns up to 15 lowercase words longer than two characters,
// joined with ", ".
func GenerateTags(title string) string {
	if title == "" {
		return ""
	}
	s := reTagStrip.ReplaceAllString(strings.ToLower(title), "")
	var words []string
	for _, w := range reTitleSplit.Split(s, -1) {
		if len(w) > 2 {
			words = append(words, w)
		}
		if len(words) == tagLimit {
			break
		}
	}
	return strings.Join(words, ", ")
}

// MetaDescription is the tag list followed by the start of the description.
func MetaDescription(tags, description string) string {
	d := []rune(description)
	if len(d) > metaDescRunes {
		d = d[:metaDescRunes]
	}
	return tags + ". " + string(d) + "..."
}

// ExtractItemSpecifics detects size, colour, material, gender and age group
// in the title and description. Each key is present only when found.
func ExtractItemSpecifics(title, description string) map[string]string {
	text := strings.ToLower(title + " " + description)
	specifics := map[string]string{}

	if m := reSizeMeasure.FindString(text); m != "" {
		specifics["Size"] = strings.TrimSpace(m)
	} else if m := reSizeLetter.FindString(text); m != "" {
		specifics["Size"] = strings.TrimSpace(m)
	}
	if m := reColor.FindStringSubmatch(text); m != nil {
		specifics["Color"] = firstNonEmpty(m[2], m[0])
	}
	if m := reMaterial.FindStringSubmatch(text); m != nil {
		specifics["Material"] = firstNonEmpty(m[2], m[0])
	}
	if m := reGender.FindString(text); m != "" {
		specifics["Gender"] = m
	}
	if m := reAgeGroup.FindString(text); m != "" {
		specifics["AgeGroup"] = m
	}
	return specifics
}

// PostageFor picks the last tier, scanning upward, whose weight threshold
// does not exceed weight. The first tier applies below every threshold.
func PostageFor(weight float64, tiers []internal.PostageTier) internal.PostageTier {
	if len(tiers) == 0 {
		tiers = defaultPostageTiers
	}
	selected := tiers[0]
	for _, t := range tiers {
		if weight < t.MaxWeight {
			break
		}
		selected = t
	}
	return selected
}

// FormatDateToSKU turns an ISO date into the ddmmyy listing prefix.
func FormatDateToSKU(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return "", ErrMissingDate
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t.Format("020106"), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
