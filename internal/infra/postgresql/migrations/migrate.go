package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_tenants",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&domain.Tenant{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_tenants_expiry_sweep ON tenants (subscription_expires_at) WHERE subscription_status = 'ACTIVE'`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&domain.Tenant{})
			},
		},
		{
			ID: "000002_create_contacts",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&domain.Contact{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_contacts_tenant_status ON contacts (tenant_id, status)`,
					`CREATE INDEX IF NOT EXISTS idx_contacts_tenant_donated ON contacts (tenant_id, total_donated)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&domain.Contact{})
			},
		},
		{
			ID: "000003_create_campaigns",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&domain.Campaign{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_campaigns_tenant_status ON campaigns (tenant_id, status)`,
					`CREATE INDEX IF NOT EXISTS idx_campaigns_stuck_scan ON campaigns (sent_at) WHERE status = 'SENDING'`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&domain.Campaign{})
			},
		},
		{
			ID: "000004_create_messages",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&domain.Message{}, &domain.MessageRecipient{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_messages_campaign_id ON messages (campaign_id)`,
					`CREATE INDEX IF NOT EXISTS idx_message_recipients_message_id ON message_recipients (message_id)`,
					`CREATE INDEX IF NOT EXISTS idx_message_recipients_contact_id ON message_recipients (contact_id)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&domain.MessageRecipient{}, &domain.Message{})
			},
		},
		{
			ID: "000005_create_credit_transactions",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&domain.CreditTransaction{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_credit_transactions_tenant_created ON credit_transactions (tenant_id, created_at)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&domain.CreditTransaction{})
			},
		},
		{
			ID: "000006_create_audit_and_notifications",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&domain.AuditLogEntry{}, &domain.TenantNotification{}, &domain.OutboxEvent{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_audit_log_entries_tenant_created ON audit_log_entries (tenant_id, created_at)`,
					`CREATE INDEX IF NOT EXISTS idx_tenant_notifications_tenant_created ON tenant_notifications (tenant_id, created_at)`,
					`CREATE INDEX IF NOT EXISTS idx_outbox_events_pending ON outbox_events (created_at) WHERE status = 'PENDING'`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&domain.OutboxEvent{}, &domain.TenantNotification{}, &domain.AuditLogEntry{})
			},
		},
		{
			ID: "000007_create_tenant_credentials",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&domain.TenantCredential{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_tenant_credentials_tenant_channel ON tenant_credentials (tenant_id, channel)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&domain.TenantCredential{})
			},
		},
	})

	return m.Migrate()
}
