package protocol

// Tick type codes carried by level-1 market data messages.
const (
	TickBidSize       int64 = 0
	TickBid           int64 = 1
	TickAsk           int64 = 2
	TickAskSize       int64 = 3
	TickLast          int64 = 4
	TickLastSize      int64 = 5
	TickHigh          int64 = 6
	TickLow           int64 = 7
	TickVolume        int64 = 8
	TickClose         int64 = 9
	TickOpen          int64 = 14
	TickLow13Week     int64 = 15
	TickHigh13Week    int64 = 16
	TickLow26Week     int64 = 17
	TickHigh26Week    int64 = 18
	TickLow52Week     int64 = 19
	TickHigh52Week    int64 = 20
	TickAvgVolume     int64 = 21
	TickOpenInterest  int64 = 22
	TickOptHistVol    int64 = 23
	TickOptImpliedVol int64 = 24
	TickLastTimestamp int64 = 45
	TickShortable     int64 = 46
	TickHalted        int64 = 49
)

// Generic tick codes a level-1 subscription may additionally request.
// Exposed so callers can populate config.Settings.GenericTicks.
const (
	GenericTickOptionVolume      int64 = 100
	GenericTickOptionOpenInt     int64 = 101
	GenericTickHistoricalVol     int64 = 104
	GenericTickOptionImpliedVol  int64 = 106
	GenericTickIndexFuturePrem   int64 = 162
	GenericTickMiscellaneousStat int64 = 165
	GenericTickMarkPrice         int64 = 221
	GenericTickAuction           int64 = 225
	GenericTickShortable         int64 = 236
)
