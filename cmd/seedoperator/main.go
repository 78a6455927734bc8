// seedoperator bootstraps a tenant: creates an operator and the register it
// works on, or prints a bcrypt hash for manual inserts.
//
//	go run ./cmd/seedoperator create --tenant acme --username admin --password secret123 --role admin
//	go run ./cmd/seedoperator hash --password secret123
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cashledger/internal/config"
	"cashledger/internal/dto"
	"cashledger/internal/infra"
	"cashledger/internal/model"
	"cashledger/internal/repository"
	"cashledger/internal/service"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	app := cli.NewApp()
	app.Name = "seedoperator"
	app.Usage = "bootstrap operators and registers"
	app.Commands = []cli.Command{
		{
			Name:  "create",
			Usage: "create an operator and its register",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "tenant", Value: "default", Usage: "tenant id"},
				cli.StringFlag{Name: "username", Usage: "login name"},
				cli.StringFlag{Name: "name", Value: "Administrator", Usage: "display name"},
				cli.StringFlag{Name: "password", EnvVar: "SEED_PASSWORD", Usage: "password (min 8 chars)"},
				cli.StringFlag{Name: "role", Value: service.RoleAdmin, Usage: "cashier | supervisor | admin"},
				cli.StringFlag{Name: "register", Usage: "register id (default: the operator id)"},
				cli.StringFlag{Name: "timezone", Usage: "IANA time zone of the register"},
			},
			Action: create,
		},
		{
			Name:  "hash",
			Usage: "print the bcrypt hash of a password",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "password", EnvVar: "SEED_PASSWORD"},
			},
			Action: func(c *cli.Context) error {
				if c.String("password") == "" {
					return cli.NewExitError("--password is required", 2)
				}
				h, err := bcrypt.GenerateFromPassword([]byte(c.String("password")), 12)
				if err != nil {
					return err
				}
				fmt.Println(string(h))
				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("seedoperator failed")
	}
}

func create(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := infra.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	ctx := context.Background()

	req := dto.CreateOperatorRequest{
		Username: c.String("username"),
		Name:     c.String("name"),
		Password: c.String("password"),
		Role:     c.String("role"),
	}
	if reg := c.String("register"); reg != "" {
		req.RegisterID = &reg
	}
	if req.Username == "" || len(req.Password) < 8 {
		return cli.NewExitError("--username and a --password of at least 8 characters are required", 2)
	}

	auth := service.NewAuthService(repository.NewOperatorRepository(db), cfg)
	op, err := auth.CreateOperator(ctx, c.String("tenant"), req)
	var perr *service.PersistenceError
	if errors.As(err, &perr) && errors.Is(perr.Err, repository.ErrDuplicate) {
		return cli.NewExitError(fmt.Sprintf("operator %q already exists", req.Username), 1)
	}
	if err != nil {
		return err
	}

	registers := repository.NewRegisterRepository(db)
	err = registers.Upsert(ctx, &model.Register{
		ID:       op.RegisterID,
		TenantID: op.TenantID,
		Name:     op.Name,
		TimeZone: c.String("timezone"),
		Active:   true,
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("tenant_id", op.TenantID).
		Str("operator_id", op.ID).
		Str("username", op.Username).
		Str("role", op.Role).
		Str("register_id", op.RegisterID).
		Msg("operator created")
	return nil
}
