package capability

// Entry is the display metadata a client associates with a capability.
type Entry struct {
	Tag   string `json:"tag"`
	Name  string `json:"name"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

var catalogue = [NumCapabilities]Entry{
	{Tag: "A", Name: "PoliceCar", Label: "Police car", Icon: "police_car"},
	{Tag: "B", Name: "PoliceVan", Label: "Police van", Icon: "police_van"},
	{Tag: "C", Name: "Motorcycle", Label: "Motorcycle", Icon: "motorcycle"},
	{Tag: "D", Name: "FireTruck", Label: "Heavy rescue", Icon: "fire_truck"},
	{Tag: "E", Name: "Ambulance", Label: "Medical unit", Icon: "ambulance"},
}

// Catalogue returns the static capability table in index order.
func Catalogue() []Entry {
	out := make([]Entry, NumCapabilities)
	copy(out, catalogue[:])
	return out
}
