// Package sampledata writes small deterministic taxi-trip parquet files for
// tests and local experimentation.
package sampledata

import (
	"fmt"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"
)

type (
	TripRow struct {
		VendorID       string  `parquet:"name=vendor_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
		PassengerCount int64   `parquet:"name=passenger_count, type=INT64"`
		FareAmount     float64 `parquet:"name=fare_amount, type=DOUBLE"`
		PickupAt       int64   `parquet:"name=pickup_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	}
)

var vendors = []string{"CMT", "VTS"}

// Trip returns the i-th deterministic trip row.
func Trip(i int) TripRow {
	return TripRow{
		VendorID:       vendors[i%len(vendors)],
		PassengerCount: int64(i%4) + 1,
		FareAmount:     2.5 + float64(i%100)*0.5,
		PickupAt:       time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute).UnixMilli(),
	}
}

// WriteTrips writes one parquet file with one row group per entry of
// groupSizes, holding that many rows. Returns the total row count.
func WriteTrips(path string, groupSizes []int) (int64, error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return 0, fmt.Errorf("error in local.NewLocalFileWriter: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(TripRow), 2)
	if err != nil {
		return 0, fmt.Errorf("error in writer.NewParquetWriter: %w", err)
	}

	var total int64
	i := 0
	for _, size := range groupSizes {
		for n := 0; n < size; n++ {
			if err := pw.Write(Trip(i)); err != nil {
				return 0, fmt.Errorf("error in pw.Write: %w", err)
			}
			i++
		}
		// end the row group so partition boundaries are exactly groupSizes
		if err := pw.Flush(true); err != nil {
			return 0, fmt.Errorf("error in pw.Flush: %w", err)
		}
		total += int64(size)
	}
	if err := pw.WriteStop(); err != nil {
		return 0, fmt.Errorf("error in pw.WriteStop: %w", err)
	}
	return total, nil
}
