package cache

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/discount"
)

func encodeZones(zones []catalog.Zone) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, z := range zones {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Str(z.ID) })
			e.Field("name", func(e *jx.Encoder) { e.Str(z.Name) })
			e.Field("cost", func(e *jx.Encoder) { e.Str(z.Cost.String()) })
		})
	}
	e.ArrEnd()
	return e.Bytes()
}

func decodeZones(data []byte) ([]catalog.Zone, error) {
	zones := []catalog.Zone{}
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var z catalog.Zone
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "id":
				v, err := d.Str()
				z.ID = v
				return err
			case "name":
				v, err := d.Str()
				z.Name = v
				return err
			case "cost":
				v, err := d.Str()
				if err != nil {
					return err
				}
				z.Cost, err = decimal.NewFromString(v)
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		zones = append(zones, z)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode zones")
	}
	return zones, nil
}

func encodeDiscounts(ds []discount.Discount) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, d := range ds {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Str(d.ID) })
			e.Field("product_id", func(e *jx.Encoder) { e.Str(d.ProductID) })
			e.Field("percentage", d.Percentage.Encode)
			e.Field("starts_at", func(e *jx.Encoder) { e.Str(d.StartsAt.Format(time.RFC3339Nano)) })
			e.Field("ends_at", func(e *jx.Encoder) { e.Str(d.EndsAt.Format(time.RFC3339Nano)) })
			e.Field("created_at", func(e *jx.Encoder) { e.Str(d.CreatedAt.Format(time.RFC3339Nano)) })
		})
	}
	e.ArrEnd()
	return e.Bytes()
}

func decodeDiscounts(data []byte) ([]discount.Discount, error) {
	ds := []discount.Discount{}
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var disc discount.Discount
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "id":
				v, err := d.Str()
				disc.ID = v
				return err
			case "product_id":
				v, err := d.Str()
				disc.ProductID = v
				return err
			case "percentage":
				return disc.Percentage.Decode(d)
			case "starts_at":
				return decodeTime(d, &disc.StartsAt)
			case "ends_at":
				return decodeTime(d, &disc.EndsAt)
			case "created_at":
				return decodeTime(d, &disc.CreatedAt)
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		ds = append(ds, disc)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode discounts")
	}
	return ds, nil
}

func decodeTime(d *jx.Decoder, t *time.Time) error {
	v, err := d.Str()
	if err != nil {
		return err
	}
	*t, err = time.Parse(time.RFC3339Nano, v)
	return err
}
