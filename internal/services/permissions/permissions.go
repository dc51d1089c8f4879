package permissions

import (
	"github.com/bwmarrin/discordgo"
	"github.com/sarulabs/di/v2"
	"github.com/zekrotja/ken"

	"github.com/zekurio/hearth/internal/models"
	"github.com/zekurio/hearth/internal/services/database"
	"github.com/zekurio/hearth/internal/util/static"
	"github.com/zekurio/hearth/pkg/discordutils"
	"github.com/zekurio/hearth/pkg/perms"
	"github.com/zekurio/hearth/pkg/roleutils"
)

type Permissions struct {
	db  database.Database
	cfg models.Config
}

var _ PermsProvider = (*Permissions)(nil)

func InitPermissions(ctn di.Container) *Permissions {
	return NewPermissions(
		ctn.Get(static.DiDatabase).(database.Database),
		ctn.Get(static.DiConfig).(models.Config))
}

func NewPermissions(db database.Database, cfg models.Config) *Permissions {
	return &Permissions{
		db:  db,
		cfg: cfg,
	}
}

func (p *Permissions) Before(ctx *ken.Ctx) (next bool, err error) {
	cmd, ok := ctx.Command.(CommandPerms)
	if !ok {
		next = true
		return
	}

	if ctx.User() == nil {
		return
	}

	dn := RequiredPerm(cmd, ctx.GetEvent())

	ok, err = p.HasPerms(ctx.GetSession(), ctx.GetEvent().GuildID, ctx.User().ID, dn)
	if err != nil {
		return false, err
	}

	if !ok {
		err = ctx.RespondError("You are not permitted to use this command!", "Missing Permission")
		return
	}

	next = true
	return
}

func (p *Permissions) HasPerms(session *discordgo.Session, guildID, userID, dn string) (ok bool, err error) {
	perms, err := p.GetPerms(session, guildID, userID)
	if err != nil {
		return false, err
	}

	return perms.Has(dn), nil
}

func (p *Permissions) GetPerms(session *discordgo.Session, guildID, userID string) (perm perms.PermsArray, err error) {
	if guildID != "" {
		guild, err := discordutils.GetGuild(session, guildID)
		if err != nil {
			return perms.PermsArray{}, nil
		}

		member, err := discordutils.GetMember(session, guildID, userID)
		if err != nil {
			return perms.PermsArray{}, nil
		}

		if userID == guild.OwnerID || (member != nil && discordutils.IsAdmin(guild, member)) {
			perm = perm.Merge(p.adminRules(), false)
		}

		memberPerms, err := p.GetMemberPerms(session, guildID, userID)
		if err == nil {
			perm = perm.Merge(memberPerms, true)
		}
	}

	return p.resolve(perm, userID), nil
}

func (p *Permissions) GetMemberPerms(session *discordgo.Session, guildID string, memberID string) (perms.PermsArray, error) {
	guildPerms, err := p.db.GetPermissions(guildID)
	if err != nil {
		return nil, err
	}
	membRoles, err := roleutils.GetSortedMemberRoles(session, guildID, memberID, false, true)
	if err != nil {
		return nil, err
	}

	roleIDs := make([]string, len(membRoles))
	for i, r := range membRoles {
		roleIDs[i] = r.ID
	}

	return mergeRolePerms(guildPerms, roleIDs), nil
}

// resolve applies the bot owner and default user rules.
func (p *Permissions) resolve(perm perms.PermsArray, userID string) perms.PermsArray {
	if p.cfg.Discord.OwnerID != "" && userID == p.cfg.Discord.OwnerID {
		perm = perms.PermsArray{"+ht.*"}
	}

	return perm.Merge(p.userRules(), false)
}

func (p *Permissions) adminRules() []string {
	if p.cfg.Permissions.AdminRules == nil {
		return static.DefaultAdminRules
	}
	return p.cfg.Permissions.AdminRules
}

func (p *Permissions) userRules() []string {
	if p.cfg.Permissions.UserRules == nil {
		return static.DefaultUserRules
	}
	return p.cfg.Permissions.UserRules
}

// mergeRolePerms merges the rules of the given roles, sorted from
// highest to lowest, so that higher roles override lower ones.
func mergeRolePerms(guildPerms map[string]perms.PermsArray, roleIDs []string) perms.PermsArray {
	var res perms.PermsArray
	for i := len(roleIDs) - 1; i >= 0; i-- {
		if p, ok := guildPerms[roleIDs[i]]; ok {
			if res == nil {
				res = p
			} else {
				res = res.Merge(p, true)
			}
		}
	}
	return res
}

// RequiredPerm returns the permission needed to run cmd
// for the invoked sub command.
func RequiredPerm(cmd CommandPerms, e *discordgo.InteractionCreate) string {
	dn := cmd.Perm()

	subs := cmd.SubPerms()
	if len(subs) == 0 || e == nil || e.Type != discordgo.InteractionApplicationCommand {
		return dn
	}

	opts := e.ApplicationCommandData().Options
	if len(opts) == 0 || opts[0].Type != discordgo.ApplicationCommandOptionSubCommand {
		return dn
	}

	for _, s := range subs {
		if s.Name == opts[0].Name {
			return dn + "." + s.Perm
		}
	}

	return dn
}
