package auction

import (
	"github.com/nexuslabs/auctionengine/internal/capabilities"
	"github.com/nexuslabs/auctionengine/internal/events"
	"github.com/nexuslabs/auctionengine/internal/gateway"
	"github.com/nexuslabs/auctionengine/internal/ledger"
)

// testRig bundles a Dispatcher with the fakes needed to drive it
// deterministically, mirroring ledger.newTestState's shape one layer up.
type testRig struct {
	d      *Dispatcher
	gw     *gateway.MockGateway
	clock  *capabilities.FakeClock
	params *capabilities.StaticParameters
	sink   *events.SliceSink
}

func newRig(now int64, feeBps uint32, treasury capabilities.Principal) *testRig {
	gw := gateway.NewMockGateway()
	sink := events.NewSliceSink()
	rec := events.NewRecorder(sink, 1)
	l := ledger.New(gw, rec)
	clock := capabilities.NewFakeClock(now)
	params := capabilities.NewStaticParameters(feeBps, treasury)
	return &testRig{
		d:      New(l, clock, params, nil),
		gw:     gw,
		clock:  clock,
		params: params,
		sink:   sink,
	}
}
