package reports

import "financify/internal/core"

// Assemble builds the report of one owner and month. Net worth is the exact
// difference of the sums, rounded once to two decimals half away from zero.
func Assemble(id, userID int64, month core.MonthKey, assets, liabilities []core.Statement) core.Report {
	assetTotal, assetIDs := total(assets)
	liabilityTotal, liabilityIDs := total(liabilities)

	return core.Report{
		ID:             id,
		UserID:         userID,
		Date:           month,
		AssetIDs:       assetIDs,
		LiabilityIDs:   liabilityIDs,
		NetWorth:       assetTotal.Sub(liabilityTotal).Round2(),
		AssetTotal:     &assetTotal,
		LiabilityTotal: &liabilityTotal,
	}
}

func total(statements []core.Statement) (core.Money, []int64) {
	values := make([]core.Money, 0, len(statements))
	ids := make([]int64, 0, len(statements))
	for _, s := range statements {
		values = append(values, s.Value)
		ids = append(ids, s.ID)
	}
	return core.Sum(values...), ids
}
