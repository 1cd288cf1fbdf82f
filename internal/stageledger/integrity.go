package stageledger

import "context"

// Drift reports one stage counter that no longer matches the sum of its
// ledger history (production entries, adjustments, job work receipts,
// shipments). Counters are only ever mutated inside transactions, so any
// drift points at manual interference with the database.
type Drift struct {
	ProductCode string `json:"product_code"`
	Stage       string `json:"stage"`
	Counter     int64  `json:"counter"`
	Expected    int64  `json:"expected"`
}

const integrityQuery = `
SELECT si.product_code,
	si.cores, si.plated, si.machined, si.qc, si.stamped, si.packed,
	COALESCE(p.cores, 0) + COALESCE(a.cores, 0) + COALESCE(j.cores, 0),
	COALESCE(p.plated, 0) + COALESCE(a.plated, 0) + COALESCE(j.plated, 0),
	COALESCE(p.machined, 0) + COALESCE(a.machined, 0) + COALESCE(j.machined, 0),
	COALESCE(p.qc, 0) + COALESCE(a.qc, 0) + COALESCE(j.qc, 0),
	COALESCE(p.stamped, 0) + COALESCE(a.stamped, 0) + COALESCE(j.stamped, 0),
	COALESCE(p.packed, 0) + COALESCE(a.packed, 0) + COALESCE(j.packed, 0) - COALESCE(sh.shipped, 0)
FROM stage_inventory si
LEFT JOIN (
	SELECT product_code,
		SUM(cores_delta) AS cores, SUM(plated_delta) AS plated, SUM(machined_delta) AS machined,
		SUM(qc_delta) AS qc, SUM(stamped_delta) AS stamped, SUM(packed_delta) AS packed
	FROM production_entries GROUP BY product_code
) p USING (product_code)
LEFT JOIN (
	SELECT product_code,
		SUM(quantity) FILTER (WHERE stage = 'cores') AS cores,
		SUM(quantity) FILTER (WHERE stage = 'plated') AS plated,
		SUM(quantity) FILTER (WHERE stage = 'machined') AS machined,
		SUM(quantity) FILTER (WHERE stage = 'qc') AS qc,
		SUM(quantity) FILTER (WHERE stage = 'stamped') AS stamped,
		SUM(quantity) FILTER (WHERE stage = 'packed') AS packed
	FROM stock_adjustments GROUP BY product_code
) a USING (product_code)
LEFT JOIN (
	SELECT product_code,
		SUM(quantity) FILTER (WHERE stage = 'cores') AS cores,
		SUM(quantity) FILTER (WHERE stage = 'plated') AS plated,
		SUM(quantity) FILTER (WHERE stage = 'machined') AS machined,
		SUM(quantity) FILTER (WHERE stage = 'qc') AS qc,
		SUM(quantity) FILTER (WHERE stage = 'stamped') AS stamped,
		SUM(quantity) FILTER (WHERE stage = 'packed') AS packed
	FROM jobwork_receipt_items GROUP BY product_code
) j USING (product_code)
LEFT JOIN (
	SELECT product_code, SUM(quantity) AS shipped FROM shipment_items GROUP BY product_code
) sh USING (product_code)
ORDER BY si.product_code`

// CheckIntegrity recomputes every stage counter from its history and
// returns the counters that disagree.
func (r *Repository) CheckIntegrity(ctx context.Context) ([]Drift, error) {
	rows, err := r.pool.Query(ctx, integrityQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drifts []Drift
	for rows.Next() {
		var code string
		actual := make([]int64, len(Stages))
		expected := make([]int64, len(Stages))
		dest := []any{&code}
		for i := range actual {
			dest = append(dest, &actual[i])
		}
		for i := range expected {
			dest = append(dest, &expected[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for i, stage := range Stages {
			if actual[i] != expected[i] {
				drifts = append(drifts, Drift{ProductCode: code, Stage: stage, Counter: actual[i], Expected: expected[i]})
			}
		}
	}
	return drifts, rows.Err()
}
