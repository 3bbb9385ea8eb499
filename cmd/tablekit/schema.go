package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/artpar/tablekit/config"
	"github.com/artpar/tablekit/ports"
	"github.com/artpar/tablekit/row"
	"github.com/artpar/tablekit/session"
	"github.com/artpar/tablekit/table"
	"github.com/artpar/tablekit/web"
)

// defineTables builds the demo blueprints: the users and notes tables
// plus one static table per configured dataset.
func defineTables(cfg *config.Config) ([]session.Member, error) {
	users := table.NewDynamic(web.UsersTable, row.NewSchema(
		row.Field{Name: "id", Column: row.Identity()},
		row.Field{Name: "public_id", Column: row.UUID().Required()},
		row.Field{Name: "email", Column: row.String().Required()},
		row.Field{Name: "password_hash", Column: row.String().Required()},
		row.Field{Name: "active", Column: row.Boolean()},
		row.Field{Name: "created_at", Column: row.Created()},
		row.Field{Name: "updated_at", Column: row.Updated()},
	), func(b ports.TableBuilder) {
		b.Increments("id")
		b.UUID("public_id").NotNull().Unique()
		b.String("email").NotNull().Unique()
		b.String("password_hash").NotNull()
		b.Boolean("active").NotNull().Default(true)
		b.Timestamp("created_at").Default(ports.Raw("CURRENT_TIMESTAMP"))
		b.Timestamp("updated_at")
	})

	notes := table.NewDynamic("notes", row.NewSchema(
		row.Field{Name: "id", Column: row.Identity()},
		row.Field{Name: "title", Column: row.String().Required()},
		row.Field{Name: "body", Column: row.String()},
		row.Field{Name: "pinned", Column: row.Boolean()},
		row.Field{Name: "created_at", Column: row.Created()},
		row.Field{Name: "updated_at", Column: row.Updated()},
	), func(b ports.TableBuilder) {
		b.Increments("id")
		b.String("title").NotNull()
		b.Text("body")
		b.Boolean("pinned").NotNull().Default(false)
		b.Timestamp("created_at").Default(ports.Raw("CURRENT_TIMESTAMP"))
		b.Timestamp("updated_at")
	})

	members := []session.Member{
		{Name: web.UsersTable, Blueprint: users},
		{Name: "notes", Blueprint: notes},
	}

	for _, d := range cfg.Datasets {
		data, err := table.LoadDatasetFile(d.Path)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", d.Table, err)
		}
		static, err := table.NewStatic(d.Table, referenceSchema(), referenceDDL, data)
		if err != nil {
			return nil, err
		}
		members = append(members, session.Member{Name: d.Table, Blueprint: static})
	}
	return members, nil
}

// referenceSchema is the shape every configured static dataset uses:
// an id, a display name, and the date phase it belongs to.
func referenceSchema() row.Schema {
	return row.NewSchema(
		row.Field{Name: "id", Column: row.Identity()},
		row.Field{Name: "name", Column: row.String().Required()},
		row.Field{Name: table.CreatedColumn, Column: row.Date().Required()},
	)
}

func referenceDDL(b ports.TableBuilder) {
	b.Integer("id").Primary()
	b.String("name").NotNull()
	b.Date(table.CreatedColumn).NotNull()
}

// migrate creates the demo tables and loads the earliest phase of each
// static dataset. Existing tables are dropped first; the demo store is
// disposable.
func migrate(base *session.Database, logger zerolog.Logger) error {
	ctx := context.Background()
	for _, name := range base.Names() {
		m, err := base.Get(name)
		if err != nil {
			return err
		}
		switch t := m.(type) {
		case *table.Static:
			if err := t.Drop(ctx); err != nil {
				return err
			}
			if err := t.Initialize(ctx); err != nil {
				return err
			}
		case *table.Dynamic:
			if err := t.Drop(ctx); err != nil {
				return err
			}
			if err := t.Create(ctx); err != nil {
				return err
			}
		}
		logger.Info().Str("table", name).Msg("table initialized")
	}
	return nil
}
