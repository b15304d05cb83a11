package policy

import "github.com/ulrichando/ParentShield/internal/domain"

// GamingListID identifies the gaming category.
const GamingListID = "gaming"

// NewGamingList returns launchers, game clients and gaming sites.
// Processes are enabled by the game toggle; domains by game or dns.
func NewGamingList() BlockList {
	return &staticList{
		id:             GamingListID,
		name:           "Games",
		processes:      lower(gamingProcesses...),
		domains:        lower(gamingDomains...),
		processToggles: []domain.Feature{domain.FeatureGame},
		domainToggles:  []domain.Feature{domain.FeatureGame, domain.FeatureDNS},
	}
}

var gamingProcesses = []string{
	// Steam
	"steam", "steam.exe", "steamwebhelper", "steamwebhelper.exe", "steamservice.exe", "Steam.app",
	// Epic
	"epicgameslauncher", "epicgameslauncher.exe", "EpicWebHelper.exe", "Epic Games Launcher.app",
	// EA / Origin
	"origin", "origin.exe", "OriginWebHelperService.exe", "EADesktop.exe", "EABackgroundService.exe",
	// Battle.net
	"battle.net", "battle.net.exe", "agent.exe", "Battle.net.app",
	// Ubisoft
	"ubisoftconnect", "ubisoftconnect.exe", "upc.exe", "UplayWebCore.exe", "Ubisoft Connect.app",
	// GOG
	"galaxyclient", "galaxyclient.exe", "GOG Galaxy.app",
	"discord", "discord.exe", "Discord.app",
	"robloxplayerbeta", "robloxplayerbeta.exe", "RobloxPlayerBeta.app", "robloxstudiobeta.exe",
	"minecraft", "javaw.exe", "minecraft-launcher", "Minecraft.app",
	"leagueclient", "leagueclient.exe", "league of legends.exe",
	"fortniteclient-win64-shipping.exe", "fortnitelauncher.exe",
	"valorant.exe", "valorant-win64-shipping.exe", "vanguard.exe",
	"cs2.exe", "csgo.exe", "overwatch.exe",
	"genshinimpact.exe", "yuanshen.exe",
	"playnite.exe", "playnite.desktopapp.exe",
	// Linux compatibility layers
	"lutris", "gamescope", "wine", "wine64", "proton",
	// Cloud gaming
	"geforcenow.exe", "xboxapp.exe", "gamingservices.exe",
}

var gamingDomains = []string{
	// platforms and stores
	"steam.com", "steampowered.com", "store.steampowered.com", "steamcommunity.com", "steamcdn-a.akamaihd.net",
	"epicgames.com", "store.epicgames.com", "epicgamesstore.com", "gog.com", "gogalaxy.com",
	"battle.net", "blizzard.com", "activision.com", "callofduty.com", "origin.com", "ea.com",
	"electronicarts.com", "ubisoft.com", "uplay.com", "ubisoftconnect.com", "xbox.com",
	"playstation.com", "store.playstation.com", "nintendo.com", "nintendo.co.uk", "nintendo.eu",
	"humblebundle.com", "greenmangaming.com", "fanatical.com", "gamersgate.com", "indiegala.com",
	"g2a.com", "kinguin.net", "cdkeys.com", "eneba.com", "instant-gaming.com",

	// streaming
	"twitch.tv", "kick.com", "gaming.youtube.com", "fb.gg", "trovo.live", "dlive.tv", "caffeine.tv",
	"medal.tv", "streamlabs.com", "streamelements.com", "play.geforcenow.com", "stadia.google.com",
	"xcloud.com", "luna.amazon.com", "boosteroid.com", "shadow.tech", "parsec.app",

	// browser games
	"poki.com", "poki.nl", "poki.fr", "poki.de", "poki.es", "miniclip.com", "kongregate.com",
	"crazygames.com", "armorgames.com", "newgrounds.com", "itch.io", "coolmathgames.com",
	"coolmath-games.com", "addictinggames.com", "y8.com", "friv.com", "kizi.com", "agame.com",
	"silvergames.com", "games.co.uk", "gameforge.com", "iogames.space", "io-games.io", "lagged.com",
	"gameflare.com", "gamepix.com", "gamedistribution.com", "primarygames.com", "arcadeprehacks.com",
	"unblockedgames.com", "unblockedgames66.com", "unblocked-games.com", "tyrone-unblocked-games.com",
	"mathplayground.com", "twoplayergames.org", "1001games.com", "spilgames.com", "gamesgames.com",
	"freegames.org", "onlinegames.io", "plays.org", "now.gg",

	// io games
	"agar.io", "slither.io", "diep.io", "krunker.io", "surviv.io", "zombsroyale.io", "moomoo.io",
	"skribbl.io", "shellshock.io", "ev.io", "venge.io", "1v1.lol", "buildnow.gg", "narrow.one",
	"territorial.io", "yohoho.io", "paper.io", "hole.io", "wormate.io", "littlebigsnake.com",
	"powerline.io", "lordz.io", "spinz.io", "wings.io",

	// titles
	"roblox.com", "web.roblox.com", "minecraft.net", "classicminecraft.net", "leagueoflegends.com",
	"op.gg", "u.gg", "fortnite.com", "fortnitetracker.com", "valorant.com", "tracker.gg",
	"playoverwatch.com", "overwatchleague.com", "playvalorant.com", "counter-strike.net", "hltv.org",
	"faceit.com", "esea.net", "dota2.com", "dotabuff.com", "opendota.com", "apexlegends.com",
	"pubg.com", "escapefromtarkov.com", "worldoftanks.com", "worldofwarships.com", "warthunder.com",
	"genshin.hoyoverse.com", "hoyoverse.com", "mihoyo.com", "honkaistarrail.com", "pokemongo.com",
	"runescape.com", "oldschool.runescape.com", "finalfantasyxiv.com", "worldofwarcraft.com",
	"wowhead.com", "icy-veins.com", "lostark.com", "pathofexile.com", "diablo.com",

	// news and communities
	"ign.com", "gamespot.com", "kotaku.com", "polygon.com", "pcgamer.com", "eurogamer.net",
	"rockpapershotgun.com", "gamesradar.com", "destructoid.com", "gameinformer.com", "gematsu.com",
	"siliconera.com", "thegamer.com", "gamerant.com", "vg247.com", "gamefaqs.com", "giantbomb.com",
	"howlongtobeat.com", "isthereanydeal.com", "gg.deals", "steamdb.info", "steamcharts.com",

	// esports
	"esportsearnings.com", "liquipedia.net", "gosugamers.net", "dotesports.com", "dexerto.com",
	"lolesports.com", "valorantesports.com", "blast.tv", "esl.com", "eslgaming.com",

	// mods
	"nexusmods.com", "moddb.com", "curseforge.com", "thunderstore.io", "modrinth.com",
	"gamebanana.com", "modworkshop.net", "gta5-mods.com", "pcgamingwiki.com",

	// emulators and roms
	"emulatorgames.net", "romspure.com", "romsgames.net", "vimm.net", "emuparadise.me", "coolrom.com",
	"loveroms.com", "romhustler.org", "romsforever.com", "wowroms.com", "romulation.org",

	// gambling
	"stake.com", "roobet.com", "csgoroll.com", "gamdom.com", "rollbit.com", "duelbits.com",
	"csgoluck.com", "csgoempire.com", "skinclub.gg",

	// cheats
	"unknowncheats.me", "mpgh.net", "aimjunkies.com", "iwantcheats.net", "cheatengine.org",
	"wemod.com", "flingtrainer.com", "cheathappens.com", "plitch.com",

	// trading
	"skinport.com", "bitskins.com", "dmarket.com", "cs.money", "tradeit.gg", "swap.gg",
	"skinbaron.de", "skinwallet.com", "lootbear.com",

	// discord
	"discord.com", "discord.gg", "discordapp.com", "discord.media",

	// misc
	"boardgamearena.com", "tabletopia.com", "pogo.com", "arkadium.com", "bigfishgames.com",
	"wildtangent.com", "gamehouse.com", "shockwave.com", "king.com", "zynga.com", "supercell.com",
}
