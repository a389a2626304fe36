// Package protocol holds the fixed wire vocabularies of the terminal
// protocol: version thresholds, message type codes, tick types, order status
// strings and the bar-size table. Everything here is immutable and built at
// startup; session state never lives in this package.
package protocol

import "fmt"

// Version is a negotiated protocol version. The protocol evolved through
// dozens of server versions and nearly every field on the wire is gated on
// one of the thresholds below.
type Version int64

const (
	// ClientVersion is the newest protocol version this adapter speaks.
	ClientVersion Version = 76
	// MinServerVersion is the hard floor; servers older than this are rejected.
	MinServerVersion Version = 38
)

// Thresholds at which individual features (and their wire fields) appeared.
// Serializers and parsers must consult these in ascending order, matching the
// historical order fields were added; reordering breaks the wire layout.
const (
	VerClientID        Version = 3
	VerConnectionTime  Version = 20
	VerScaleOrders     Version = 35
	VerSnapshotMktData Version = 35
	VerWhatIfOrders    Version = 36
	VerContractConID   Version = 37

	VerPTAOrders             Version = 39
	VerFundamentalData       Version = 40
	VerDeltaNeutral          Version = 40
	VerContractDataChain     Version = 40
	VerScaleOrders2          Version = 40
	VerAlgoOrders            Version = 41
	VerExecutionDataChain    Version = 42
	VerNotHeld               Version = 44
	VerSecIDType             Version = 45
	VerPlaceOrderConID       Version = 46
	VerReqMktDataConID       Version = 47
	VerCalcImpliedVolat      Version = 49
	VerCalcOptionPrice       Version = 50
	VerShortSaleOld          Version = 51
	VerShortSale             Version = 52
	VerGlobalCancel          Version = 53
	VerHedgeOrders           Version = 54
	VerMarketDataType        Version = 55
	VerOptOutSmartRouting    Version = 56
	VerSmartComboRouting     Version = 57
	VerDeltaNeutralConID     Version = 58
	VerScaleOrders3          Version = 60
	VerOrderComboLegsPrice   Version = 61
	VerTrailingPercent       Version = 62
	VerDeltaNeutralOpenClose Version = 66
	VerAcctSummary           Version = 67
	VerTradingClass          Version = 68
	VerScaleTable            Version = 69
	VerLinking               Version = 70
)

// Negotiate fixes the protocol version for the lifetime of a connection.
func Negotiate(server, client Version) Version {
	if server < client {
		return server
	}
	return client
}

// Supports reports whether the negotiated version carries fields added at
// the given threshold.
func (v Version) Supports(threshold Version) bool {
	return v >= threshold
}

// Gate invokes action iff the negotiated version is at least threshold.
// Every per-field version check in every serializer and parser goes through
// this primitive so the conditional wire layout stays declarative.
func (v Version) Gate(threshold Version, action func()) {
	if v >= threshold {
		action()
	}
}

// GateBetween invokes action iff the negotiated version lies in [lo, hi].
// A few features were added and then special-cased away again; modelling both
// bounds keeps servers newer than hi from silently regressing.
func (v Version) GateBetween(lo, hi Version, action func()) {
	if v >= lo && v <= hi {
		action()
	}
}

func (v Version) String() string {
	return fmt.Sprintf("v%d", int64(v))
}
