package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"zigbee-lumi/internal/health"
	"zigbee-lumi/internal/lumi"
)

var (
	bucketDevices = []byte("devices")
	bucketHealth  = []byte("health")
	bucketRegions = []byte("regions")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketDevices, bucketHealth, bucketRegions} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func bucket(tx *bolt.Tx, name []byte) (*bolt.Bucket, error) {
	b := tx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("bucket %q not found", name)
	}
	return b, nil
}

func (s *BoltStore) SaveDevice(dev *Device) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, bucketDevices)
		if err != nil {
			return err
		}
		data, err := json.Marshal(dev)
		if err != nil {
			return err
		}
		return b.Put([]byte(dev.IEEEAddress), data)
	})
}

func (s *BoltStore) GetDevice(ieee string) (*Device, error) {
	var dev Device
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, bucketDevices)
		if err != nil {
			return err
		}
		data := b.Get([]byte(ieee))
		if data == nil {
			return fmt.Errorf("device %s: %w", ieee, ErrNotFound)
		}
		return json.Unmarshal(data, &dev)
	})
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

func (s *BoltStore) UpdateDevice(ieee string, fn func(dev *Device) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, bucketDevices)
		if err != nil {
			return err
		}
		data := b.Get([]byte(ieee))
		if data == nil {
			return fmt.Errorf("device %s: %w", ieee, ErrNotFound)
		}
		var dev Device
		if err := json.Unmarshal(data, &dev); err != nil {
			return err
		}
		if err := fn(&dev); err != nil {
			return err
		}
		out, err := json.Marshal(&dev)
		if err != nil {
			return err
		}
		return b.Put([]byte(ieee), out)
	})
}

func (s *BoltStore) DeleteDevice(ieee string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, bucketDevices)
		if err != nil {
			return err
		}
		if err := b.Delete([]byte(ieee)); err != nil {
			return err
		}
		h, err := bucket(tx, bucketHealth)
		if err != nil {
			return err
		}
		if err := h.Delete([]byte(ieee)); err != nil {
			return err
		}
		r, err := bucket(tx, bucketRegions)
		if err != nil {
			return err
		}
		if r.Bucket([]byte(ieee)) != nil {
			return r.DeleteBucket([]byte(ieee))
		}
		return nil
	})
}

func (s *BoltStore) ListDevices() ([]*Device, error) {
	var devices []*Device
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		if b == nil {
			return nil // no bucket = no devices
		}
		devices = make([]*Device, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var dev Device
			if err := json.Unmarshal(v, &dev); err != nil {
				return err
			}
			devices = append(devices, &dev)
			return nil
		})
	})
	return devices, err
}

func (s *BoltStore) SaveHealth(rec health.Record) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, bucketHealth)
		if err != nil {
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.DeviceID), data)
	})
}

func (s *BoltStore) GetHealth(ieee string) (health.Record, error) {
	var rec health.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, bucketHealth)
		if err != nil {
			return err
		}
		data := b.Get([]byte(ieee))
		if data == nil {
			return fmt.Errorf("health %s: %w", ieee, ErrNotFound)
		}
		return json.Unmarshal(data, &rec)
	})
	return rec, err
}

// Regions live in one nested bucket per device, keyed by two-digit id so
// that cursor order is id order.
func regionKey(id int) []byte { return []byte(fmt.Sprintf("%02d", id)) }

func (s *BoltStore) SaveRegion(ieee string, r lumi.Region) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root, err := bucket(tx, bucketRegions)
		if err != nil {
			return err
		}
		b, err := root.CreateBucketIfNotExists([]byte(ieee))
		if err != nil {
			return err
		}
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return b.Put(regionKey(r.ID), data)
	})
}

func (s *BoltStore) DeleteRegion(ieee string, id int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root, err := bucket(tx, bucketRegions)
		if err != nil {
			return err
		}
		b := root.Bucket([]byte(ieee))
		if b == nil {
			return nil
		}
		return b.Delete(regionKey(id))
	})
}

func (s *BoltStore) ListRegions(ieee string) ([]lumi.Region, error) {
	var regions []lumi.Region
	err := s.db.View(func(tx *bolt.Tx) error {
		root, err := bucket(tx, bucketRegions)
		if err != nil {
			return err
		}
		b := root.Bucket([]byte(ieee))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var r lumi.Region
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			regions = append(regions, r)
			return nil
		})
	})
	return regions, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
