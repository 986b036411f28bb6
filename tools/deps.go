//go:build tools
// +build tools

package tools

import (
	_ "github.com/adhocore/gronx"
	_ "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/google/uuid"
	_ "github.com/spf13/cobra"
	_ "github.com/spf13/viper"
)
