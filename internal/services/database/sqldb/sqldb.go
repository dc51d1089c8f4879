// Package sqldb implements the database service on top of database/sql.
// The same queries are used for postgres and sqlite since both accept
// numbered "$n" placeholders.
package sqldb

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pressly/goose/v3"

	"github.com/zekurio/hearth/internal/models"
	"github.com/zekurio/hearth/internal/services/database"
	"github.com/zekurio/hearth/internal/services/database/dberr"
	"github.com/zekurio/hearth/internal/util/embedded"
	"github.com/zekurio/hearth/pkg/perms"
)

type SQL struct {
	db *sql.DB
}

var (
	_           database.Database = (*SQL)(nil)
	guildTables                   = []string{"guilds", "permissions", "voice_channels", "voice_groups", "voice_role_links"}
)

func open(driver, dsn, dialect string, setup func(*sql.DB)) (*SQL, error) {
	var (
		s   SQL
		err error
	)

	s.db, err = sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if setup != nil {
		setup(s.db)
	}

	err = s.db.Ping()
	if err != nil {
		return nil, err
	}

	goose.SetBaseFS(embedded.Migrations)
	goose.SetLogger(log.StandardLog())
	if err = goose.SetDialect(dialect); err != nil {
		return nil, err
	}
	if err = goose.Up(s.db, "migrations"); err != nil {
		return nil, err
	}

	return &s, nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}

// GUILDS

func (s *SQL) GetAlertChannel(guildID string) (string, error) {
	chID, err := GetValue[string](s, "guilds", "alert_channel_id", "guild_id", guildID)
	if dberr.IsErrNotFound(err) {
		return "", nil
	}
	return chID, err
}

func (s *SQL) SetAlertChannel(guildID, channelID string) error {
	return SetValue(s, "guilds", "alert_channel_id", channelID, "guild_id", guildID)
}

// PERMISSIONS

func (s *SQL) GetPermissions(guildID string) (map[string]perms.PermsArray, error) {
	results := make(map[string]perms.PermsArray)
	rows, err := s.db.Query(`SELECT role_id, perms FROM permissions WHERE guild_id = $1`, guildID)
	if err != nil {
		return nil, s.wrapErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var roleID string
		var permStr string

		err := rows.Scan(&roleID, &permStr)
		if err != nil {
			return nil, s.wrapErr(err)
		}

		if permStr == "" {
			continue
		}
		results[roleID] = strings.Split(permStr, ",")
	}

	return results, rows.Err()
}

func (s *SQL) SetPermissions(guildID, roleID string, perms perms.PermsArray) error {
	if len(perms) == 0 {
		_, err := s.db.Exec(`DELETE FROM permissions WHERE guild_id = $1 AND role_id = $2`, guildID, roleID)
		return err
	}

	pStr := strings.Join(perms, ",")
	res, err := s.db.Exec(`UPDATE permissions SET perms = $1 WHERE guild_id = $2 AND role_id = $3`, pStr, guildID, roleID)
	if err != nil {
		return err
	}
	ar, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if ar == 0 {
		_, err := s.db.Exec(`INSERT INTO permissions (guild_id, role_id, perms) VALUES ($1, $2, $3)`, guildID, roleID, pStr)
		return err
	}

	return nil
}

// VOICE GROUPS

func (s *SQL) AddVoiceGroup(g models.DynamicVoiceGroup) error {
	_, err := s.db.Exec(`INSERT INTO voice_groups (id, guild_id, channel_id, name, public) VALUES ($1, $2, $3, $4, $5)`,
		g.ID, g.GuildID, g.ChannelID, g.Name, g.Public)
	return err
}

func (s *SQL) GetVoiceGroup(groupID string) (g models.DynamicVoiceGroup, err error) {
	err = s.db.QueryRow(`SELECT id, guild_id, channel_id, name, public FROM voice_groups WHERE id = $1`, groupID).
		Scan(&g.ID, &g.GuildID, &g.ChannelID, &g.Name, &g.Public)
	err = s.wrapErr(err)
	return
}

func (s *SQL) GetVoiceGroupByChannel(channelID string) (g models.DynamicVoiceGroup, err error) {
	err = s.db.QueryRow(`SELECT id, guild_id, channel_id, name, public FROM voice_groups WHERE channel_id = $1`, channelID).
		Scan(&g.ID, &g.GuildID, &g.ChannelID, &g.Name, &g.Public)
	err = s.wrapErr(err)
	return
}

func (s *SQL) GetVoiceGroups(guildID string) ([]models.DynamicVoiceGroup, error) {
	rows, err := s.db.Query(`SELECT id, guild_id, channel_id, name, public FROM voice_groups WHERE guild_id = $1 ORDER BY name`, guildID)
	if err != nil {
		return nil, s.wrapErr(err)
	}
	defer rows.Close()

	var results []models.DynamicVoiceGroup
	for rows.Next() {
		var g models.DynamicVoiceGroup
		if err := rows.Scan(&g.ID, &g.GuildID, &g.ChannelID, &g.Name, &g.Public); err != nil {
			return nil, err
		}
		results = append(results, g)
	}

	return results, rows.Err()
}

func (s *SQL) DeleteVoiceGroup(groupID string) error {
	_, err := s.db.Exec(`DELETE FROM voice_groups WHERE id = $1`, groupID)
	return err
}

// VOICE CHANNELS

func (s *SQL) AddVoiceChannel(c models.DynamicVoiceChannel) error {
	_, err := s.db.Exec(`INSERT INTO voice_channels (channel_id, text_channel_id, guild_id, group_id, owner_id) VALUES ($1, $2, $3, $4, $5)`,
		c.ChannelID, c.TextChannelID, c.GuildID, c.GroupID, c.OwnerID)
	return err
}

func (s *SQL) GetVoiceChannel(channelID string) (c models.DynamicVoiceChannel, err error) {
	err = s.db.QueryRow(`SELECT channel_id, text_channel_id, guild_id, group_id, owner_id FROM voice_channels WHERE channel_id = $1`, channelID).
		Scan(&c.ChannelID, &c.TextChannelID, &c.GuildID, &c.GroupID, &c.OwnerID)
	err = s.wrapErr(err)
	return
}

func (s *SQL) GetVoiceChannels(groupID string) ([]models.DynamicVoiceChannel, error) {
	return s.queryVoiceChannels(`SELECT channel_id, text_channel_id, guild_id, group_id, owner_id FROM voice_channels WHERE group_id = $1`, groupID)
}

func (s *SQL) GetGuildVoiceChannels(guildID string) ([]models.DynamicVoiceChannel, error) {
	return s.queryVoiceChannels(`SELECT channel_id, text_channel_id, guild_id, group_id, owner_id FROM voice_channels WHERE guild_id = $1`, guildID)
}

func (s *SQL) SetVoiceChannelOwner(channelID, ownerID string) error {
	res, err := s.db.Exec(`UPDATE voice_channels SET owner_id = $1 WHERE channel_id = $2`, ownerID, channelID)
	if err != nil {
		return err
	}
	ar, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if ar == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

func (s *SQL) DeleteVoiceChannel(channelID string) error {
	_, err := s.db.Exec(`DELETE FROM voice_channels WHERE channel_id = $1`, channelID)
	return err
}

// ROLE VOICE LINKS

func (s *SQL) AddRoleVoiceLink(l models.RoleVoiceLink) error {
	_, err := s.db.Exec(`INSERT INTO voice_role_links (guild_id, channel_id, role_id) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		l.GuildID, l.ChannelID, l.RoleID)
	return err
}

func (s *SQL) GetRoleVoiceLinks(guildID string) ([]models.RoleVoiceLink, error) {
	rows, err := s.db.Query(`SELECT guild_id, channel_id, role_id FROM voice_role_links WHERE guild_id = $1`, guildID)
	if err != nil {
		return nil, s.wrapErr(err)
	}
	defer rows.Close()

	var results []models.RoleVoiceLink
	for rows.Next() {
		var l models.RoleVoiceLink
		if err := rows.Scan(&l.GuildID, &l.ChannelID, &l.RoleID); err != nil {
			return nil, err
		}
		results = append(results, l)
	}

	return results, rows.Err()
}

func (s *SQL) DeleteRoleVoiceLink(l models.RoleVoiceLink) error {
	_, err := s.db.Exec(`DELETE FROM voice_role_links WHERE guild_id = $1 AND channel_id = $2 AND role_id = $3`,
		l.GuildID, l.ChannelID, l.RoleID)
	return err
}

func (s *SQL) DeleteRoleVoiceLinksByChannel(guildID, channelID string) error {
	_, err := s.db.Exec(`DELETE FROM voice_role_links WHERE guild_id = $1 AND channel_id = $2`, guildID, channelID)
	return err
}

// DATA MANAGEMENT

func (s *SQL) FlushGuildData(guildID string) error {
	return s.tx(func(tx *sql.Tx) error {
		var failed []string

		for _, table := range guildTables {
			_, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE guild_id = $1`, table), guildID)
			if err != nil {
				failed = append(failed, table)
			}
		}

		if len(failed) > 0 {
			return fmt.Errorf("failed to flush guild data of tables: %v", failed)
		}

		return nil
	})
}

//
// HELPERS
//

func (s *SQL) queryVoiceChannels(query string, args ...any) ([]models.DynamicVoiceChannel, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, s.wrapErr(err)
	}
	defer rows.Close()

	var results []models.DynamicVoiceChannel
	for rows.Next() {
		var c models.DynamicVoiceChannel
		if err := rows.Scan(&c.ChannelID, &c.TextChannelID, &c.GuildID, &c.GroupID, &c.OwnerID); err != nil {
			return nil, err
		}
		results = append(results, c)
	}

	return results, rows.Err()
}

func (s *SQL) tx(f func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	if err = f(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (s *SQL) wrapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return dberr.ErrNotFound
	}
	return err
}

// GetValue retrieves a specific value from a table.
func GetValue[TVal, TWv any](t *SQL, table, valueKey, whereKey string, whereValue TWv) (TVal, error) {
	var value TVal
	query := fmt.Sprintf(`SELECT "%s" FROM %s WHERE "%s" = $1`, valueKey, table, whereKey)
	err := t.db.QueryRow(query, whereValue).Scan(&value)
	return value, t.wrapErr(err)
}

// SetValue updates a specific value in a table, or inserts a new row if none is found.
func SetValue[TVal, TWv any](t *SQL, table, valueKey string, value TVal, whereKey string, whereValue TWv) error {
	updateQuery := fmt.Sprintf(`UPDATE %s SET "%s" = $1 WHERE "%s" = $2`, table, valueKey, whereKey)
	result, err := t.db.Exec(updateQuery, value, whereValue)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		insertQuery := fmt.Sprintf(`INSERT INTO %s ("%s", "%s") VALUES ($1, $2)`, table, whereKey, valueKey)
		_, err = t.db.Exec(insertQuery, whereValue, value)
	}

	return err
}
