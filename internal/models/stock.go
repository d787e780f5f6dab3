package models

type Part struct {
	ID               int64  `bson:"_id" json:"id"`
	Reference        string `bson:"reference" json:"reference"`
	Name             string `bson:"name" json:"name"`
	MinimumThreshold int    `bson:"minimum_threshold" json:"minimumThreshold"`
	Active           bool   `bson:"active" json:"active"`
}

func (p Part) Label() string {
	if p.Reference == "" {
		return p.Name
	}
	return p.Reference + " " + p.Name
}

// StockEntry is the quantity of one part held at one stock location.
type StockEntry struct {
	ID         int64  `bson:"_id" json:"id"`
	PartID     int64  `bson:"part_id" json:"partId"`
	LocationID int64  `bson:"location_id" json:"locationId"`
	Location   string `bson:"location" json:"location"`
	Quantity   int    `bson:"quantity" json:"quantity"`
}
