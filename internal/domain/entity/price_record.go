package entity

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// PriceRecord is one feed's observed or persisted price.
// Fields are unexported so a record cannot be mutated after construction;
// a newer observation replaces the stored record as a whole.
type PriceRecord struct {
	price       *big.Int
	conf        *big.Int
	expo        int32
	publishTime int64
}

// NewPriceRecord creates a PriceRecord with validation. The big.Int arguments are copied.
// conf may be nil, in which case it is treated as zero.
func NewPriceRecord(price, conf *big.Int, expo int32, publishTime int64) (PriceRecord, error) {
	if price == nil {
		return PriceRecord{}, fmt.Errorf("price must not be nil")
	}
	if publishTime <= 0 {
		return PriceRecord{}, fmt.Errorf("publishTime must be positive, got %d", publishTime)
	}

	c := new(big.Int)
	if conf != nil {
		if conf.Sign() < 0 {
			return PriceRecord{}, fmt.Errorf("conf must not be negative, got %s", conf)
		}
		c.Set(conf)
	}

	return PriceRecord{
		price:       new(big.Int).Set(price),
		conf:        c,
		expo:        expo,
		publishTime: publishTime,
	}, nil
}

// Price returns a copy of the raw integer price.
func (r PriceRecord) Price() *big.Int {
	if r.price == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(r.price)
}

// Conf returns a copy of the confidence interval.
func (r PriceRecord) Conf() *big.Int {
	if r.conf == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(r.conf)
}

// Expo is the base-10 exponent applied to Price and Conf.
func (r PriceRecord) Expo() int32 { return r.expo }

// PublishTime is the unix timestamp (seconds) of the observation.
func (r PriceRecord) PublishTime() int64 { return r.publishTime }

// IsZeroPrice reports whether the price is exactly zero.
func (r PriceRecord) IsZeroPrice() bool {
	return r.price == nil || r.price.Sign() == 0
}

// Equal reports whether two records hold the same values.
func (r PriceRecord) Equal(o PriceRecord) bool {
	return r.Price().Cmp(o.Price()) == 0 &&
		r.Conf().Cmp(o.Conf()) == 0 &&
		r.expo == o.expo &&
		r.publishTime == o.publishTime
}

// Scaled returns Price * 10^Expo for display purposes only.
func (r PriceRecord) Scaled() decimal.Decimal {
	return decimal.NewFromBigInt(r.Price(), r.expo)
}

// String implements fmt.Stringer.
func (r PriceRecord) String() string {
	return fmt.Sprintf("%s@%d", r.Scaled().String(), r.publishTime)
}

// priceRecordJSON mirrors the Pyth price JSON layout.
// Integers are carried as strings to survive JSON number precision limits.
type priceRecordJSON struct {
	Price       string `json:"price"`
	Conf        string `json:"conf"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

// MarshalJSON implements json.Marshaler.
func (r PriceRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(priceRecordJSON{
		Price:       r.Price().String(),
		Conf:        r.Conf().String(),
		Expo:        r.expo,
		PublishTime: r.publishTime,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *PriceRecord) UnmarshalJSON(data []byte) error {
	var raw priceRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	rec, err := ParsePriceRecord(raw.Price, raw.Conf, raw.Expo, raw.PublishTime)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

// ParsePriceRecord builds a PriceRecord from the decimal string form used by
// the price service and by persisted state. An empty conf is treated as zero.
func ParsePriceRecord(price, conf string, expo int32, publishTime int64) (PriceRecord, error) {
	p, ok := new(big.Int).SetString(price, 10)
	if !ok {
		return PriceRecord{}, fmt.Errorf("invalid price %q", price)
	}

	var c *big.Int
	if conf != "" {
		c, ok = new(big.Int).SetString(conf, 10)
		if !ok {
			return PriceRecord{}, fmt.Errorf("invalid conf %q", conf)
		}
	}

	return NewPriceRecord(p, c, expo, publishTime)
}
