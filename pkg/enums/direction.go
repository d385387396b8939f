package enums

// Direction classifies a movement event by how it changes stock levels.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
	// DirectionOther covers operation types that match neither label set.
	// Those rows are retained for audit but excluded from rollups.
	DirectionOther Direction = "other"
)

func (d Direction) Valid() bool {
	switch d {
	case DirectionInbound, DirectionOutbound, DirectionOther:
		return true
	}
	return false
}
