package classify

// entry is one authored row of the classification table. Exactly one of
// message, messageWithDate (%s = status date) or messageWithDue
// (%s = status date + offsetDays) is set.
type entry struct {
	category        Category
	subReason       string
	offsetDays      int
	message         string
	messageWithDate string
	messageWithDue  string
}

// packageInfoTitles are the first-stage dropdown option titles per category,
// exactly as the console renders them.
var packageInfoTitles = map[Category]string{
	CategoryFulfilled:     "已经完成物流履约",
	CategoryNotReceived:   "包裹实际未交接、未收到包裹",
	CategoryCannotFulfill: "***无法物流履约，不需要菜鸟协助",
	CategoryHandedToNext:  "包裹实际已经交接给xxx物流商、下一阶段",
	CategoryForceMajeure:  "不可抗力已报备",
	CategoryConfirmedLost: "确认丢失",
}

// defaultSubReasons are the second-stage dropdown choices when the code has
// no more specific sub-reason of its own.
var defaultSubReasons = map[Category]string{
	CategoryFulfilled:     "其他",
	CategoryNotReceived:   "其他",
	CategoryCannotFulfill: "原因",
	CategoryHandedToNext:  "其他",
	CategoryForceMajeure:  "原因（海关查验、其他等）",
	CategoryConfirmedLost: "其他",
}

var table = map[string]entry{}

type row struct {
	codes []string
	entry entry
}

// Authored rows. The due-date offsets follow the structured-close flow of
// the console: store transfers, abnormal arrivals and expired intake windows
// return to the customs broker after 7 days, pickup/packaging/label problems
// after 5.
var rows = []row{
	{
		codes: []string{"AOL", "AOLL"},
		entry: entry{category: CategoryFulfilled, messageWithDate: "已完成包裹成功取件，感謝(%s)"},
	},
	{
		codes: []string{"EIN00", "EIN60", "EIN62"},
		entry: entry{category: CategoryFulfilled, messageWithDate: "包裹已送達物流中心，進行理貨中，後續將安排配送至取貨門市，感謝(%s)"},
	},
	{
		codes: []string{"PP00", "PP01"},
		entry: entry{category: CategoryFulfilled, messageWithDate: "包裹進行配送中，後續將安排配送至取貨門市，感謝(%s)"},
	},
	{
		codes: []string{"PPS101"},
		entry: entry{category: CategoryFulfilled, messageWithDate: "包裹已配達門市，煩請通知顧客盡快前往門市取件，感謝(%s)"},
	},
	{
		codes: []string{"EIN09", "VIN"},
		entry: entry{category: CategoryNotReceived, messageWithDate: "我方未收到包裹，請與菜鳥台灣倉確認，感謝(%s)"},
	},
	{
		codes: []string{"EIN36", "PPS015"},
		entry: entry{category: CategoryCannotFulfill, subReason: "門市關轉", offsetDays: 7, messageWithDue: "門市關轉，預計%s退回清關行, 謝謝"},
	},
	{
		codes: []string{"EIN35"},
		entry: entry{category: CategoryCannotFulfill, subReason: "不正常到貨", offsetDays: 7, messageWithDue: "不正常到貨(因未上傳包裹資料或未於進貨日進貨)，我方無法驗收配送，預計%s退回清關行，謝謝"},
	},
	{
		codes: []string{"EIN99"},
		entry: entry{category: CategoryCannotFulfill, subReason: "超過進貨期限，配編已失效", offsetDays: 7, messageWithDue: "超過進貨期限，配編已失效，預計%s退回清關行，謝謝"},
	},
	{
		codes: []string{"PPS201"},
		entry: entry{category: CategoryCannotFulfill, subReason: "逾期未取", offsetDays: 5, messageWithDue: "逾期未取，預計%s退回清關行，謝謝"},
	},
	{
		codes: []string{"EIN31", "EIN3A", "EIN3B", "EIN3C"},
		entry: entry{category: CategoryCannotFulfill, subReason: "進貨包裝不良", offsetDays: 5, messageWithDue: "進貨包裝不良，預計%s退回清關行，謝謝"},
	},
	{
		codes: []string{"EIN32"},
		entry: entry{category: CategoryCannotFulfill, subReason: "超才", offsetDays: 5, messageWithDue: "超才，預計%s退回清關行，謝謝"},
	},
	{
		codes: []string{"EIN37", "EIN38", "EIN39"},
		entry: entry{category: CategoryCannotFulfill, subReason: "標籤條碼異常，無法刷讀", offsetDays: 5, messageWithDue: "標籤條碼異常，無法刷讀，預計%s退回清關行，謝謝"},
	},
	{
		codes: []string{
			"EVR01", "EDR01", "EVR11", "EVR12", "EVR13", "EVR14", "EVR15",
			"EVR21", "EVR31", "EVR32", "EVR34", "EVR35", "EVR36", "EVR37",
			"EVR38", "EVR39", "EVR3A", "EVR3B", "EVR3C", "EVR99",
		},
		entry: entry{category: CategoryHandedToNext, messageWithDate: "已退回清關行，廠退日%s"},
	},
	{
		codes: []string{"PPS013"},
		entry: entry{category: CategoryForceMajeure, offsetDays: 7, message: "因取件門市位於離島地區，船班需視當地海象氣候配送，包裹到店將發送簡訊通知，還請以到店簡訊通知為主，造成不便，敬請見諒，感謝"},
	},
	{
		codes: []string{"EIN61", "PPS303", "EIN63"},
		entry: entry{category: CategoryConfirmedLost, message: "包裹遺失將進行賠償程序，造成不便，敬請見諒，感謝"},
	},
}

func init() {
	for _, r := range rows {
		for _, code := range r.codes {
			if _, dup := table[code]; dup {
				panic("classify: duplicate status code in table: " + code)
			}
			table[code] = r.entry
		}
	}
}
