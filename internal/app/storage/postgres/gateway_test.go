package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"scratchpay/internal/app/apperr"
	"scratchpay/internal/app/model"
	"scratchpay/internal/app/secrets"
)

const sealKeyHex = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestGatewayReadOpensSealedSecret(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	box, err := secrets.NewBox(sealKeyHex)
	if err != nil {
		t.Fatalf("secrets box: %v", err)
	}
	r, _ := NewGatewayRepository(db, box)

	sealed, err := box.Seal("whsec_plain")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	id := uuid.New()
	mock.ExpectQuery("FROM gateways").WillReturnRows(sqlmock.NewRows([]string{
		"id", "created_at", "name", "provider", "is_active", "api_endpoint",
		"public_key", "secret_key", "for_deposit", "for_withdraw", "allow_pix", "allow_card",
	}).AddRow(
		id.String(), time.Now(), "pagfast-main", "pagfast", true, "https://api.pagfast.test",
		"pk", sealed, true, true, true, false,
	))

	g, err := r.Read(context.Background(), id)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if g.SecretKey != "whsec_plain" {
		t.Errorf("secret key = %q", g.SecretKey)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// sealedArg matches any value the box can open back to the wanted plaintext.
type sealedArg struct {
	box  *secrets.Box
	want string
}

func (a sealedArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	got, err := a.box.Open(s)
	return err == nil && got == a.want
}

func TestGatewayCreateSealsSecret(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	box, err := secrets.NewBox(sealKeyHex)
	if err != nil {
		t.Fatalf("secrets box: %v", err)
	}
	r, _ := NewGatewayRepository(db, box)

	id := uuid.New()
	mock.ExpectQuery("INSERT INTO gateways").
		WithArgs(
			"pagfast-main", "pagfast", true, "https://api.pagfast.test", "pk",
			sealedArg{box: box, want: "whsec_plain"},
			true, true, true, false,
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))

	g, err := r.Create(context.Background(), &model.Gateway{
		Name:        "pagfast-main",
		Provider:    "pagfast",
		IsActive:    true,
		APIEndpoint: "https://api.pagfast.test",
		PublicKey:   "pk",
		SecretKey:   "whsec_plain",
		ForDeposit:  true,
		ForWithdraw: true,
		AllowPix:    true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if g.ID != id {
		t.Errorf("id = %s", g.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGatewayCreateRequiresEndpointAndSecret(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	box, _ := secrets.NewBox(sealKeyHex)
	r, _ := NewGatewayRepository(db, box)

	for _, m := range []*model.Gateway{
		{Provider: "pagfast", SecretKey: "sk"},
		{Provider: "pagfast", APIEndpoint: "https://x"},
	} {
		if _, err := r.Create(context.Background(), m); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Fatalf("err = %v, want ErrInvalidInput", err)
		}
	}
}

func TestGatewayAllActiveOmitsCredentials(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	box, _ := secrets.NewBox(sealKeyHex)
	r, _ := NewGatewayRepository(db, box)

	mock.ExpectQuery("FROM gateways").WillReturnRows(sqlmock.NewRows([]string{
		"id", "created_at", "name", "provider", "is_active", "api_endpoint",
		"for_deposit", "for_withdraw", "allow_pix", "allow_card",
	}).AddRow(
		uuid.NewString(), time.Now(), "pagfast-main", "pagfast", true, "https://api.pagfast.test",
		true, true, true, false,
	))

	gg, err := r.AllActive(context.Background())
	if err != nil {
		t.Fatalf("AllActive: %v", err)
	}
	if len(gg) != 1 {
		t.Fatalf("len = %d", len(gg))
	}
	if gg[0].SecretKey != "" || gg[0].PublicKey != "" {
		t.Error("listing must not carry credential material")
	}
}

func TestGatewayReadRejectsCorruptSecret(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	box, err := secrets.NewBox(sealKeyHex)
	if err != nil {
		t.Fatalf("secrets box: %v", err)
	}
	r, _ := NewGatewayRepository(db, box)

	id := uuid.New()
	mock.ExpectQuery("FROM gateways").WillReturnRows(sqlmock.NewRows([]string{
		"id", "created_at", "name", "provider", "is_active", "api_endpoint",
		"public_key", "secret_key", "for_deposit", "for_withdraw", "allow_pix", "allow_card",
	}).AddRow(
		id.String(), time.Now(), "pagfast-main", "pagfast", true, "https://api.pagfast.test",
		"pk", "not-a-sealed-value", true, true, true, false,
	))

	if _, err := r.Read(context.Background(), id); err == nil {
		t.Fatal("corrupt sealed secret must not open")
	}
}
