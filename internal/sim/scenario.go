package sim

import (
	"fmt"
	"math/rand"
	"time"
)

type Participant struct {
	Alias string
	Role  string
	Org   string
}

type Harvest struct {
	ShipmentID    string
	ProductName   string
	CropType      string
	FarmLocation  string
	Quantity      float64
	UnitOfMeasure string
	HarvestDate   time.Time
}

type Scenario struct {
	Name         string
	Participants []Participant
	Crops        []string
	Farms        []string
}

func ValleyChainScenario() Scenario {
	return Scenario{
		Name: "ValleyToShelf",
		Participants: []Participant{
			{Alias: "demo-farmer", Role: "farmer", Org: "Green Valley Cooperative"},
			{Alias: "demo-certifier", Role: "certifier", Org: "Regional Organic Board"},
			{Alias: "demo-processor", Role: "processor", Org: "Fresh Pack Processing"},
			{Alias: "demo-distributor", Role: "distributor", Org: "ColdChain Logistics"},
			{Alias: "demo-retailer", Role: "retailer", Org: "Corner Market Group"},
		},
		Crops: []string{"tomato", "lettuce", "strawberry", "sweet corn", "apple"},
		Farms: []string{"Green Valley", "North Ridge", "Riverbend Fields"},
	}
}

type Generator struct {
	scenario Scenario
	rnd      *rand.Rand
	seq      int
}

func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{scenario: ValleyChainScenario(), rnd: rand.New(rand.NewSource(seed))}
}

func (g *Generator) NextHarvest() Harvest {
	g.seq++
	crop := g.scenario.Crops[g.rnd.Intn(len(g.scenario.Crops))]
	farm := g.scenario.Farms[g.rnd.Intn(len(g.scenario.Farms))]
	return Harvest{
		ShipmentID:    fmt.Sprintf("demo-%s-%04d", crop, g.seq),
		ProductName:   crop,
		CropType:      crop,
		FarmLocation:  farm,
		Quantity:      float64(g.rnd.Intn(900)+100) / 10, // 10.0 - 100.0
		UnitOfMeasure: "kg",
		HarvestDate:   time.Now().UTC().Add(-time.Duration(g.rnd.Intn(72)) * time.Hour),
	}
}

func (g *Generator) Participants() []Participant {
	return append([]Participant(nil), g.scenario.Participants...)
}
