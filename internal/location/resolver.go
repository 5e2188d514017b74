// Package location derives the region, division and office hierarchy from the
// organisation's location table and applies the cascading scope filter.
package location

import (
	"sort"
	"strings"

	"github.com/pitabwire/reportal/internal/slug"
	"github.com/pitabwire/reportal/model"
)

// Resolve builds the hierarchy from raw records.
//
// Records with a blank region are discarded. A division belongs to the region
// of the first record that names it; later records naming the same division
// under another region are ignored. Every record with a non-blank office name
// yields an office, so duplicate names are retained.
func Resolve(records []model.LocationRecord) model.Hierarchy {
	regionSet := make(map[string]bool)
	divisionRegion := make(map[string]string)
	var offices []model.Office

	for _, r := range records {
		region := strings.TrimSpace(r.Region)
		if region == "" {
			continue
		}
		regionSet[region] = true

		division := strings.TrimSpace(r.Division)
		if division != "" {
			if _, seen := divisionRegion[division]; !seen {
				divisionRegion[division] = region
			}
		}

		name := strings.TrimSpace(r.OfficeName)
		if name != "" {
			offices = append(offices, model.Office{
				ID:       name,
				Name:     name,
				Region:   region,
				Division: division,
			})
		}
	}

	regionNames := make([]string, 0, len(regionSet))
	for name := range regionSet {
		regionNames = append(regionNames, name)
	}
	sort.Strings(regionNames)

	h := model.Hierarchy{
		Regions:   make([]model.Region, 0, len(regionNames)),
		Divisions: make([]model.Division, 0, len(divisionRegion)),
		Offices:   offices,
	}
	for _, name := range regionNames {
		h.Regions = append(h.Regions, model.Region{ID: slug.Slugify(name), Name: name})
	}
	for name, region := range divisionRegion {
		h.Divisions = append(h.Divisions, model.Division{ID: slug.Slugify(name), Name: name, Region: region})
	}
	sort.Slice(h.Divisions, func(i, j int) bool { return h.Divisions[i].Name < h.Divisions[j].Name })
	if h.Offices == nil {
		h.Offices = []model.Office{}
	}
	return h
}
