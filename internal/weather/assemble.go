package weather

import "fmt"

// Assemble turns a decoded hourly payload into timestamp-ordered rows holding
// the requested parameters. Row i is stamped StartTime + i*Interval.
func Assemble(payload HourlyPayload, parameters []string) ([]TimeSeriesRow, error) {
	if payload.Interval <= 0 {
		return nil, decodeErrorf("non-positive interval %s", payload.Interval)
	}
	if payload.EndTime.Before(payload.StartTime) {
		return nil, decodeErrorf("end %s before start %s", payload.EndTime, payload.StartTime)
	}

	n := payload.Len()

	columns := make([][]float64, len(parameters))
	for i, name := range parameters {
		values, ok := payload.Variable(name)
		if !ok {
			return nil, fmt.Errorf("%w: parameter %q missing from payload", ErrDataMisalignment, name)
		}
		if len(values) != n {
			return nil, fmt.Errorf("%w: parameter %q has %d values, want %d",
				ErrDataMisalignment, name, len(values), n)
		}
		columns[i] = values
	}

	rows := make([]TimeSeriesRow, n)
	for i := range rows {
		values := make(map[string]float64, len(parameters))
		for j, name := range parameters {
			values[name] = columns[j][i]
		}
		rows[i] = TimeSeriesRow{
			Timestamp: payload.Timestamp(i).UTC(),
			Values:    values,
		}
	}
	return rows, nil
}
