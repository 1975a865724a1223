package terminal

// Kind classifies one inbound line. Control messages are %-prefixed, data
// messages $-prefixed, diagnostics are bare ERROR/WARNING/INFO lines.
type Kind int

const (
	KindUnknown Kind = iota
	KindOrder
	KindOrderAction
	KindPosition
	KindQuote
	KindLevel2
	KindTimeSales
	KindChart
	KindBuyingPower
	KindShortInfo
	KindLocateInfo
	KindLocateReturn
	KindLocateOrder
	KindLocateAvail
	KindLimitDownUp
	KindWatchOrder
	KindWatchPosition
	KindWatchTrade
	KindError
	KindWarning
	KindInfo
)

var kindNames = map[Kind]string{
	KindUnknown:       "UNKNOWN",
	KindOrder:         "ORDER",
	KindOrderAction:   "ORDER_ACTION",
	KindPosition:      "POSITION",
	KindQuote:         "QUOTE",
	KindLevel2:        "LEVEL2",
	KindTimeSales:     "TIME_SALES",
	KindChart:         "CHART",
	KindBuyingPower:   "BUYING_POWER",
	KindShortInfo:     "SHORT_INFO",
	KindLocateInfo:    "LOCATE_INFO",
	KindLocateReturn:  "LOCATE_RETURN",
	KindLocateOrder:   "LOCATE_ORDER",
	KindLocateAvail:   "LOCATE_AVAIL",
	KindLimitDownUp:   "LIMIT_DOWN_UP",
	KindWatchOrder:    "WATCH_ORDER",
	KindWatchPosition: "WATCH_POSITION",
	KindWatchTrade:    "WATCH_TRADE",
	KindError:         "ERROR",
	KindWarning:       "WARNING",
	KindInfo:          "INFO",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// Message prefixes as the terminal writes them.
const (
	prefixOrder        = "%ORDER"
	prefixOrderAction  = "%OrderAct"
	prefixPosition     = "%POS"
	prefixBuyingPower  = "%BP"
	prefixShortInfo    = "%SHORTINFO"
	prefixLocateInfo   = "%LOCATEINFO"
	prefixLocateReturn = "%SLRET"
	prefixLocateOrder  = "%SLOrder"
	prefixWatchOrder   = "%IORDER"
	prefixWatchPos     = "%IPOS"
	prefixWatchTrade   = "%ITRADE"
	prefixQuote        = "$Quote"
	prefixLevel2       = "$Lv2"
	prefixTimeSales    = "$T&S"
	prefixChart        = "$Chart"
	prefixBar          = "$Bar"
	prefixLimitDownUp  = "$LDLU"
	prefixLocateAvail  = "$SLAvailQueryRet"
	prefixError        = "ERROR"
	prefixWarning      = "WARNING"
	prefixInfo         = "INFO"
)
