package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/thiagocrux/simcasi/internal/audit"
	auditPostgres "github.com/thiagocrux/simcasi/internal/audit/postgres"
	auditDatamodel "github.com/thiagocrux/simcasi/internal/core/datamodel/audit"
)

func TestAuditPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Audit Postgres Suite")
}

var columns = []string{
	"id", "user_id", "action", "entity_name", "entity_id",
	"old_value", "new_value", "ip_address", "user_agent", "created_at",
}

var _ = Describe("AuditRepository", func() {
	var (
		mockDB *sql.DB
		mock   sqlmock.Sqlmock
		repo   *auditPostgres.AuditRepository
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		mockDB, mock, err = sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
		repo = auditPostgres.NewAuditRepository(sqlx.NewDb(mockDB, "pgx"))
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
		mockDB.Close()
	})

	It("inserts one row per entry", func() {
		actor := "u-1"
		after := `{"id":"u-2"}`
		entry := &auditDatamodel.AuditLog{
			ID:         "a-1",
			UserID:     &actor,
			Action:     audit.ActionCreate,
			EntityName: "user",
			EntityID:   "u-2",
			NewValue:   &after,
			IPAddress:  "10.0.0.1",
			UserAgent:  "test",
			CreatedAt:  time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		}

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
			WithArgs("a-1", "u-1", audit.ActionCreate, "user", "u-2", nil, after, "10.0.0.1", "test", entry.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		Expect(repo.Create(ctx, entry)).To(Succeed())
	})

	It("returns insert failures", func() {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
			WillReturnError(errors.New("connection reset"))

		err := repo.Create(ctx, &auditDatamodel.AuditLog{ID: "a-1", Action: audit.ActionDelete})
		Expect(err).To(MatchError(ContainSubstring("connection reset")))
	})

	It("filters, orders and pages with postgres placeholders", func() {
		created := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		rows := sqlmock.NewRows(columns).
			AddRow("a-2", "u-1", audit.ActionLogin, "session", "s-2", nil, `{"user_id":"u-1"}`, "10.0.0.1", "test", created.Add(time.Minute)).
			AddRow("a-1", nil, audit.ActionBreach, "session", "s-1", nil, nil, "unknown", "unknown", created)

		mock.ExpectQuery(regexp.QuoteMeta(
			"FROM audit_logs WHERE user_id = $1 AND action = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4")).
			WithArgs("u-1", audit.ActionLogin, 10, 20).
			WillReturnRows(rows)

		found, err := repo.List(ctx, audit.Filter{UserID: "u-1", Action: audit.ActionLogin, Limit: 10, Offset: 20})
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(2))
		Expect(*found[0].UserID).To(Equal("u-1"))
		Expect(*found[0].NewValue).To(Equal(`{"user_id":"u-1"}`))
		Expect(found[1].UserID).To(BeNil())
	})

	It("applies the default page size without filters", func() {
		mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs ORDER BY created_at DESC LIMIT $1 OFFSET $2")).
			WithArgs(50, 0).
			WillReturnRows(sqlmock.NewRows(columns))

		found, err := repo.List(ctx, audit.Filter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeEmpty())
		Expect(found).NotTo(BeNil())
	})
})
