package protocol

// Outbound wire message type codes (client to terminal).
const (
	OutReqMktData         int64 = 1
	OutCancelMktData      int64 = 2
	OutPlaceOrder         int64 = 3
	OutCancelOrder        int64 = 4
	OutReqOpenOrders      int64 = 5
	OutReqAcctData        int64 = 6
	OutReqExecutions      int64 = 7
	OutReqIDs             int64 = 8
	OutReqContractData    int64 = 9
	OutReqMktDepth        int64 = 10
	OutCancelMktDepth     int64 = 11
	OutSetServerLogLevel  int64 = 14
	OutReqAutoOpenOrders  int64 = 15
	OutReqAllOpenOrders   int64 = 16
	OutReqManagedAccts    int64 = 17
	OutReqHistoricalData  int64 = 20
	OutReqScannerSub      int64 = 22
	OutCancelScannerSub   int64 = 23
	OutCancelHistData     int64 = 25
	OutReqCurrentTime     int64 = 49
	OutReqRealTimeBars    int64 = 50
	OutCancelRealTimeBars int64 = 51
	OutReqGlobalCancel    int64 = 58
	OutReqMarketDataType  int64 = 59
)

// Inbound wire message type codes (terminal to client).
const (
	InTickPrice        int64 = 1
	InTickSize         int64 = 2
	InOrderStatus      int64 = 3
	InErrMsg           int64 = 4
	InOpenOrder        int64 = 5
	InAcctValue        int64 = 6
	InPortfolioValue   int64 = 7
	InAcctUpdateTime   int64 = 8
	InNextValidID      int64 = 9
	InContractData     int64 = 10
	InExecutionData    int64 = 11
	InMarketDepth      int64 = 12
	InMarketDepthL2    int64 = 13
	InManagedAccts     int64 = 15
	InHistoricalData   int64 = 17
	InScannerData      int64 = 20
	InTickGeneric      int64 = 45
	InTickString       int64 = 46
	InCurrentTime      int64 = 49
	InRealTimeBars     int64 = 50
	InContractDataEnd  int64 = 52
	InOpenOrderEnd     int64 = 53
	InAcctDownloadEnd  int64 = 54
	InExecutionDataEnd int64 = 55
	InTickSnapshotEnd  int64 = 57
	InMarketDataType   int64 = 58
	InCommissionReport int64 = 59
)

// Wire order status strings reported by the terminal.
const (
	StatusPendingSubmit = "PendingSubmit"
	StatusPendingCancel = "PendingCancel"
	StatusPreSubmitted  = "PreSubmitted"
	StatusSubmitted     = "Submitted"
	StatusCancelled     = "Cancelled"
	StatusAPICancelled  = "ApiCancelled"
	StatusFilled        = "Filled"
	StatusInactive      = "Inactive"
	StatusAPIPending    = "ApiPending"
)

// Market depth delta operations, positional per side.
const (
	DepthInsert int64 = 0
	DepthUpdate int64 = 1
	DepthDelete int64 = 2
)

// Market data delivery modes requested via OutReqMarketDataType.
const (
	MarketDataRealTime int64 = 1
	MarketDataFrozen   int64 = 2
	MarketDataDelayed  int64 = 3
)

// Default terminal endpoints. The full desktop terminal and the headless
// gateway listen on different well-known ports on loopback.
const (
	DefaultTerminalAddress = "127.0.0.1:7496"
	DefaultGatewayAddress  = "127.0.0.1:4001"
)
