package sim

type Counter struct {
	Shipments     int
	Delivered     int
	Recalled      int
	TotalQuantity float64
}

func (c *Counter) Add(h Harvest) {
	c.Shipments++
	c.TotalQuantity += h.Quantity
}
