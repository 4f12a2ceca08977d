package cmd

import (
	"fmt"

	internalApp "github.com/haierkeys/harvester-service/internal/app"
	pkgapp "github.com/haierkeys/harvester-service/pkg/app"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// tokenCmd issues an operator token signed with security.auth-token-key
// tokenCmd 使用 security.auth-token-key 签发操作员令牌
var tokenCmd = &cobra.Command{
	Use:   "token [-c config_file] [-o operator]",
	Short: "Issue an operator API token. // 签发操作员 API 令牌。",
}

func init() {
	var configFile, operator string

	tokenCmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, realpath, err := internalApp.LoadConfig(configFile)
		if err != nil {
			return err
		}
		tm := pkgapp.NewTokenManager(pkgapp.TokenConfig{
			SecretKey: cfg.Security.AuthTokenKey,
			Issuer:    pkgapp.DefaultTokenIssuer,
			Expiry:    cfg.GetTokenExpiry(),
		})
		if !tm.Enabled() {
			return errors.Errorf("security.auth-token-key is empty in %s, the API is open", realpath)
		}
		token, err := tm.Generate(operator)
		if err != nil {
			return errors.Wrap(err, "generate token")
		}
		bootstrapLogger.Info("operator token issued",
			zap.String("operator", operator),
			zap.Duration("expiry", cfg.GetTokenExpiry()))
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	}

	fs := tokenCmd.Flags()
	fs.StringVarP(&configFile, "config", "c", "config/config.yaml", "config file")
	fs.StringVarP(&operator, "operator", "o", "admin", "operator name stored in the token")
	rootCmd.AddCommand(tokenCmd)
}
