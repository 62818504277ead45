package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for the migration runner
	migrate "github.com/rubenv/sql-migrate"
)

// Migration returns the ordered schema migrations for the service.
func Migration() *migrate.MemoryMigrationSource {
	return &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "goldstream_01",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS currency (
						id          BIGSERIAL PRIMARY KEY,
						code        VARCHAR(10) NOT NULL UNIQUE,
						symbol      VARCHAR(5) NOT NULL,
						name        VARCHAR(200) NOT NULL,
						course      BIGINT NOT NULL,
						sort_number INT NOT NULL DEFAULT 0,
						is_active   BOOLEAN NOT NULL DEFAULT TRUE,
						dream_limit BIGINT NOT NULL,
						created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
						updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
					)`,
					`CREATE TABLE IF NOT EXISTS donate_size (
						currency_id BIGINT NOT NULL REFERENCES currency (id),
						level       INT NOT NULL,
						size        BIGINT NOT NULL,
						PRIMARY KEY (currency_id, level)
					)`,
					`CREATE TABLE IF NOT EXISTS country (
						id         BIGSERIAL PRIMARY KEY,
						title      VARCHAR(64) NOT NULL,
						code       VARCHAR(8) NOT NULL UNIQUE,
						is_active  BOOLEAN NOT NULL DEFAULT FALSE,
						created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
						updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
					)`,
					`CREATE TABLE IF NOT EXISTS category (
						id    BIGSERIAL PRIMARY KEY,
						title VARCHAR(128) NOT NULL UNIQUE,
						image TEXT NOT NULL DEFAULT ''
					)`,
					`CREATE TABLE IF NOT EXISTS users (
						id                     BIGSERIAL PRIMARY KEY,
						name                   VARCHAR(64) NOT NULL DEFAULT '',
						surname                VARCHAR(64) NOT NULL DEFAULT '',
						email                  VARCHAR(128) NOT NULL UNIQUE,
						phone                  VARCHAR(64) NOT NULL DEFAULT '',
						password               VARCHAR(128) NOT NULL,
						reset_token            VARCHAR(256),
						reset_token_valid_till TIMESTAMPTZ,
						birth_date             DATE,
						country_id             BIGINT REFERENCES country (id),
						is_female              BOOLEAN,
						is_active              BOOLEAN NOT NULL DEFAULT TRUE,
						is_vip                 BOOLEAN NOT NULL DEFAULT FALSE,
						language               VARCHAR(2) NOT NULL DEFAULT 'en',
						avatar                 VARCHAR(2048) NOT NULL DEFAULT '',
						refer_code             VARCHAR(18) UNIQUE,
						referer                VARCHAR(18) REFERENCES users (refer_code),
						refer_count            INT NOT NULL DEFAULT 0,
						paid_till              DATE,
						trial_till             TIMESTAMPTZ,
						currency_id            BIGINT NOT NULL REFERENCES currency (id),
						telegram               VARCHAR(64) NOT NULL DEFAULT '',
						created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
						updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
					)`,
					`CREATE INDEX IF NOT EXISTS users_referer_idx ON users (referer)`,
					`CREATE TABLE IF NOT EXISTS operator (
						id           BIGSERIAL PRIMARY KEY,
						email        VARCHAR(128) NOT NULL UNIQUE,
						name         VARCHAR(64) NOT NULL DEFAULT '',
						password     VARCHAR(128) NOT NULL,
						is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
						created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
					)`,
					`CREATE TABLE IF NOT EXISTS dream (
						id              BIGSERIAL PRIMARY KEY,
						user_id         BIGINT NOT NULL REFERENCES users (id),
						status          SMALLINT NOT NULL,
						title           VARCHAR(64) NOT NULL DEFAULT '',
						description     VARCHAR(10000) NOT NULL DEFAULT '',
						collected       BIGINT NOT NULL DEFAULT 0,
						goal            BIGINT NOT NULL DEFAULT 0,
						picture         VARCHAR(256) NOT NULL DEFAULT '',
						category_id     BIGINT REFERENCES category (id),
						ref_donations   BIGINT[] NOT NULL DEFAULT '{}',
						type_dream      VARCHAR(64) NOT NULL DEFAULT 'user',
						currency_id     BIGINT NOT NULL REFERENCES currency (id),
						language        VARCHAR(10) NOT NULL DEFAULT 'en',
						donations_count INT NOT NULL DEFAULT 0,
						closed_at       TIMESTAMPTZ,
						created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
						updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
					)`,
					`CREATE INDEX IF NOT EXISTS dream_user_status_idx ON dream (user_id, status)`,
					`CREATE TABLE IF NOT EXISTS donation (
						id                BIGSERIAL PRIMARY KEY,
						dream_id          BIGINT NOT NULL REFERENCES dream (id),
						receipt           VARCHAR(256) NOT NULL DEFAULT '',
						recipient_id      BIGINT NOT NULL REFERENCES users (id),
						sender_id         BIGINT REFERENCES users (id),
						level_number      INT,
						amount            BIGINT NOT NULL DEFAULT 0,
						status            SMALLINT NOT NULL,
						comment           VARCHAR(2048) NOT NULL DEFAULT '',
						expires_at        TIMESTAMPTZ,
						paid_at           TIMESTAMPTZ,
						confirmed_at      TIMESTAMPTZ,
						currency_id       BIGINT NOT NULL REFERENCES currency (id),
						first_currency_id BIGINT NOT NULL,
						first_amount      BIGINT NOT NULL DEFAULT 0,
						created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
						updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
					)`,
					`CREATE INDEX IF NOT EXISTS donation_recipient_idx ON donation (recipient_id)`,
					`CREATE INDEX IF NOT EXISTS donation_sender_idx ON donation (sender_id)`,
					`CREATE INDEX IF NOT EXISTS donation_dream_idx ON donation (dream_id)`,
					`CREATE TABLE IF NOT EXISTS post (
						id             BIGSERIAL PRIMARY KEY,
						title          VARCHAR(128) NOT NULL,
						cover_url      VARCHAR(256) NOT NULL DEFAULT '',
						language       VARCHAR(2) NOT NULL DEFAULT 'en',
						markup_text    VARCHAR(4096) NOT NULL DEFAULT '',
						text           VARCHAR(4096) NOT NULL,
						tags           TEXT[] NOT NULL DEFAULT '{}',
						is_published   BOOLEAN NOT NULL DEFAULT FALSE,
						published_date DATE,
						created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
						updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
					)`,
					`CREATE TABLE IF NOT EXISTS review (
						id         BIGSERIAL PRIMARY KEY,
						name       VARCHAR(30) NOT NULL,
						photo      VARCHAR(2048) NOT NULL DEFAULT '',
						lang       VARCHAR(8) NOT NULL DEFAULT 'en',
						text       VARCHAR(400) NOT NULL,
						sort       INT NOT NULL DEFAULT 500,
						is_active  BOOLEAN NOT NULL DEFAULT FALSE,
						created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
						updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
					)`,
					`CREATE UNIQUE INDEX IF NOT EXISTS review_name_lang_idx ON review (name, lang)`,
					`CREATE TABLE IF NOT EXISTS notifications (
						user_id           BIGINT NOT NULL REFERENCES users (id),
						notification_type VARCHAR(64) NOT NULL,
						is_active         BOOLEAN NOT NULL DEFAULT FALSE,
						PRIMARY KEY (user_id, notification_type)
					)`,
					`CREATE TABLE IF NOT EXISTS blacklist (
						id  BIGSERIAL PRIMARY KEY,
						jti VARCHAR(64) NOT NULL UNIQUE
					)`,
					`CREATE TABLE IF NOT EXISTS admin_settings (
						id            BIGINT PRIMARY KEY DEFAULT 1,
						exchange_rate DOUBLE PRECISION NOT NULL DEFAULT 1,
						dream_limit   BIGINT NOT NULL DEFAULT 500000,
						updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
					)`,
					`INSERT INTO admin_settings (id) VALUES (1) ON CONFLICT DO NOTHING`,
				},
				Down: []string{
					`DROP TABLE IF EXISTS admin_settings`,
					`DROP TABLE IF EXISTS blacklist`,
					`DROP TABLE IF EXISTS notifications`,
					`DROP TABLE IF EXISTS review`,
					`DROP TABLE IF EXISTS post`,
					`DROP TABLE IF EXISTS donation`,
					`DROP TABLE IF EXISTS dream`,
					`DROP TABLE IF EXISTS operator`,
					`DROP TABLE IF EXISTS users`,
					`DROP TABLE IF EXISTS category`,
					`DROP TABLE IF EXISTS country`,
					`DROP TABLE IF EXISTS donate_size`,
					`DROP TABLE IF EXISTS currency`,
				},
			},
		},
	}
}

// Migrate opens a database/sql handle over the pgx stdlib driver and applies
// all pending migrations. The caller must not start serving before this
// returns successfully.
func Migrate(dsn string) (int, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return 0, fmt.Errorf("op=migrate.open: %w", err)
	}
	defer func() { _ = db.Close() }()
	n, err := migrate.Exec(db, "postgres", Migration(), migrate.Up)
	if err != nil {
		return 0, fmt.Errorf("op=migrate.exec: %w", err)
	}
	return n, nil
}
