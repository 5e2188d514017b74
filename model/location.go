package model

// LocationRecord is one row of the organisation's location table.
type LocationRecord struct {
	OfficeID   string `json:"officeId"`
	Region     string `json:"region"`
	Division   string `json:"division"`
	OfficeName string `json:"officeName"`
}

type Region struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Division struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Region string `json:"region"`
}

// Office is a reporting office. Its ID is the display name.
type Office struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Region   string `json:"region"`
	Division string `json:"division"`
}

// Hierarchy is the region, division and office view derived from the
// location table.
type Hierarchy struct {
	Regions   []Region   `json:"regions"`
	Divisions []Division `json:"divisions"`
	Offices   []Office   `json:"offices"`
}
