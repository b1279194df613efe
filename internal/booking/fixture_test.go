package booking

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"bike_booking/internal/catalog"
	"bike_booking/internal/inventory"
	"bike_booking/internal/model"
	"bike_booking/internal/payment"
	"bike_booking/internal/store"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-gateway-secret"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type fixture struct {
	svc     *Service
	db      *gorm.DB
	ledger  *inventory.Ledger
	gateway *payment.Sandbox
	sink    *MemorySink
	clock   *clock

	customerID uint
	dealerID   uint
	bikeID     uint
}

type fixtureOpts struct {
	price        string
	stock        int64
	restoreStock bool
}

func newFixture(t *testing.T, o fixtureOpts) *fixture {
	t.Helper()
	if o.price == "" {
		o.price = "100000"
	}

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("db open: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	dir := catalog.NewDirectory(db)
	cust := &model.Customer{Name: "Asha", Email: "asha@example.com"}
	dealer := &model.Dealer{Name: "Ride Motors", City: "Pune", Verified: true}
	bike := &model.Bike{Name: "Classic 350", Brand: "Royal Enfield", BasePrice: decimal.RequireFromString(o.price)}
	for _, create := range []func() error{
		func() error { return dir.CreateCustomer(ctx, cust) },
		func() error { return dir.CreateDealer(ctx, dealer) },
		func() error { return dir.CreateBike(ctx, bike) },
	} {
		if err := create(); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	ledger := inventory.NewLedger(db)
	if _, err := ledger.Upsert(ctx, inventory.ListingInput{
		DealerID: dealer.ID,
		BikeID:   bike.ID,
		Price:    decimal.RequireFromString(o.price),
		Stock:    o.stock,
	}); err != nil {
		t.Fatalf("seed listing: %v", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	f := &fixture{
		db:         db,
		ledger:     ledger,
		gateway:    payment.NewSandbox(testSecret, 0),
		sink:       &MemorySink{},
		clock:      &clock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)},
		customerID: cust.ID,
		dealerID:   dealer.ID,
		bikeID:     bike.ID,
	}
	f.svc = NewService(Deps{
		Store:     store.New(db),
		Ledger:    ledger,
		Directory: dir,
		Gateway:   f.gateway,
		Locker:    NewLocalLocker(),
		Events:    f.sink,
		Logger:    log,
	}, Options{
		RestoreStockOnCancel: o.restoreStock,
		Now:                  f.clock.Now,
	})
	return f
}

func (f *fixture) draft(opt model.PaymentOption) Draft {
	return Draft{CustomerID: f.customerID, DealerID: f.dealerID, BikeID: f.bikeID, PaymentOption: opt}
}

func (f *fixture) create(t *testing.T, opt model.PaymentOption) View {
	t.Helper()
	v, err := f.svc.CreateBooking(context.Background(), f.draft(opt))
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return v
}

// pay runs a full checkout round trip for whatever is payable now.
func (f *fixture) pay(t *testing.T, bookingID string) View {
	t.Helper()
	ctx := context.Background()
	order, err := f.svc.StartPayment(ctx, bookingID)
	if err != nil {
		t.Fatalf("start payment: %v", err)
	}
	v, err := f.svc.ApplyPayment(ctx, bookingID, order.Amount, f.gateway.Pay(bookingID, order.OrderReference))
	if err != nil {
		t.Fatalf("apply payment: %v", err)
	}
	return v
}

func (f *fixture) stock(t *testing.T) int64 {
	t.Helper()
	li, err := f.ledger.GetListing(context.Background(), nil, f.dealerID, f.bikeID)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	return li.Stock
}

func (f *fixture) inDays(days int) time.Time {
	return f.clock.Now().Add(time.Duration(days) * 24 * time.Hour)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := KindOf(err); got != want {
		t.Fatalf("expected %s error, got %s (%v)", want, got, err)
	}
}
