package main

import (
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dedis/fairticket/merkle"
	"github.com/dedis/fairticket/random"
	"github.com/dedis/fairticket/registry"
	"github.com/dedis/fairticket/utils"
	"github.com/ethereum/go-ethereum/common"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
	cli "gopkg.in/urfave/cli.v1"
)

// Config is written by the setup command and read by every other one.
type Config struct {
	Roster   string
	ByzID    string
	IID      string
	AdminKey string
	Interval int64 // block interval in seconds
}

func main() {
	app := cli.NewApp()
	app.Name = "fairticket"
	app.Usage = "drive the FairTicket lottery contract"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Value: "fairticket.toml", Usage: "config file"},
	}
	app.Commands = []cli.Command{
		{
			Name:  "setup",
			Usage: "create a ledger and spawn the registry contract",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "roster", Usage: "group definition file"},
				cli.Uint64Flag{Name: "seed", Value: 1, Usage: "first project id"},
				cli.Int64Flag{Name: "interval", Value: 1, Usage: "block interval in seconds"},
			},
			Action: cmdSetup,
		},
		{
			Name:  "create",
			Usage: "create a project",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "fingerprint", Usage: "32-byte hex fingerprint"},
				cli.StringFlag{Name: "owner", Usage: "project owner address"},
				cli.Uint64Flag{Name: "supply", Usage: "total supply"},
			},
			Action: cmdCreate,
		},
		{
			Name:   "start",
			Usage:  "start a project",
			Flags:  []cli.Flag{cli.Uint64Flag{Name: "id"}},
			Action: cmdStart,
		},
		{
			Name:   "finish",
			Usage:  "finish a project",
			Flags:  []cli.Flag{cli.Uint64Flag{Name: "id"}},
			Action: cmdFinish,
		},
		{
			Name:  "participate",
			Usage: "register a lucky number",
			Flags: []cli.Flag{
				cli.Uint64Flag{Name: "id"},
				cli.StringFlag{Name: "addr", Usage: "participant address"},
				cli.Uint64Flag{Name: "lucky", Usage: "lucky number"},
			},
			Action: cmdParticipate,
		},
		{
			Name:  "lottery",
			Usage: "draw and publish the magic number",
			Flags: []cli.Flag{
				cli.Uint64Flag{Name: "id"},
				cli.StringFlag{Name: "seed", Usage: "derive the number from this seed instead of system randomness"},
			},
			Action: cmdLottery,
		},
		{
			Name:  "setroot",
			Usage: "store the winner-set merkle root",
			Flags: []cli.Flag{
				cli.Uint64Flag{Name: "id"},
				cli.StringFlag{Name: "root", Usage: "32-byte hex root"},
			},
			Action: cmdSetRoot,
		},
		{
			Name:  "buildroot",
			Usage: "build the merkle root over a file of winner addresses, one per line",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "winners", Usage: "file with one address per line"},
			},
			Action: cmdBuildRoot,
		},
		{
			Name:  "claim",
			Usage: "prove membership in the winner set",
			Flags: []cli.Flag{
				cli.Uint64Flag{Name: "id"},
				cli.StringFlag{Name: "addr"},
				cli.StringFlag{Name: "proof", Usage: "comma-separated hex siblings"},
			},
			Action: cmdClaim,
		},
		{
			Name:   "get",
			Usage:  "print a project record",
			Flags:  []cli.Flag{cli.Uint64Flag{Name: "id"}},
			Action: cmdGet,
		},
		{
			Name:  "participants",
			Usage: "page through the registration log",
			Flags: []cli.Flag{
				cli.Uint64Flag{Name: "id"},
				cli.Uint64Flag{Name: "offset"},
				cli.Uint64Flag{Name: "limit", Value: 10},
			},
			Action: cmdParticipants,
		},
		{
			Name:   "result",
			Usage:  "print the published magic number",
			Flags:  []cli.Flag{cli.Uint64Flag{Name: "id"}},
			Action: cmdResult,
		},
		{
			Name:  "events",
			Usage: "print the event log",
			Flags: []cli.Flag{
				cli.Uint64Flag{Name: "id"},
				cli.BoolFlag{Name: "all"},
			},
			Action: cmdEvents,
		},
	}
	err := app.Run(os.Args)
	log.ErrFatal(err)
}

func cmdSetup(c *cli.Context) error {
	roster, err := utils.ReadRoster(c.String("roster"))
	if err != nil {
		return err
	}
	interval := time.Duration(c.Int64("interval")) * time.Second
	adminCl, byzID, err := registry.SetupByzcoin(roster, interval, random.Crypto{})
	if err != nil {
		return xerrors.Errorf("setting up byzcoin: %v", err)
	}
	reply, err := adminCl.SpawnRegistry(c.Uint64("seed"), 5)
	if err != nil {
		return xerrors.Errorf("spawning registry: %v", err)
	}
	keyHex, err := utils.SignerToHex(adminCl.Signer())
	if err != nil {
		return err
	}
	cfg := Config{
		Roster:   c.String("roster"),
		ByzID:    hex.EncodeToString(byzID),
		IID:      hex.EncodeToString(reply.IID.Slice()),
		AdminKey: keyHex,
		Interval: c.Int64("interval"),
	}
	f, err := os.Create(c.GlobalString("config"))
	if err != nil {
		return err
	}
	defer f.Close()
	err = toml.NewEncoder(f).Encode(&cfg)
	if err != nil {
		return xerrors.Errorf("writing config: %v", err)
	}
	fmt.Println("ByzID:", cfg.ByzID)
	fmt.Println("Instance:", cfg.IID)
	return nil
}

func cmdCreate(c *cli.Context) error {
	adminCl, _, iid, err := loadAdmin(c, random.Crypto{})
	if err != nil {
		return err
	}
	fp, err := utils.ParseHash(c.String("fingerprint"))
	if err != nil {
		return err
	}
	owner, err := utils.ParseAddress(c.String("owner"))
	if err != nil {
		return err
	}
	id, err := adminCl.CreateProject(iid, fp, owner, c.Uint64("supply"), 5)
	if err != nil {
		return err
	}
	fmt.Println("Project id:", id)
	return nil
}

func cmdStart(c *cli.Context) error {
	adminCl, _, iid, err := loadAdmin(c, random.Crypto{})
	if err != nil {
		return err
	}
	return adminCl.StartProject(iid, c.Uint64("id"), 5)
}

func cmdFinish(c *cli.Context) error {
	adminCl, _, iid, err := loadAdmin(c, random.Crypto{})
	if err != nil {
		return err
	}
	return adminCl.FinishProject(iid, c.Uint64("id"), 5)
}

func cmdParticipate(c *cli.Context) error {
	adminCl, _, iid, err := loadAdmin(c, random.Crypto{})
	if err != nil {
		return err
	}
	addr, err := utils.ParseAddress(c.String("addr"))
	if err != nil {
		return err
	}
	return adminCl.Participate(iid, c.Uint64("id"), addr, c.Uint64("lucky"), 5)
}

func cmdLottery(c *cli.Context) error {
	var src random.Source = random.Crypto{}
	if seed := c.String("seed"); seed != "" {
		stream, err := random.NewStream([]byte(seed))
		if err != nil {
			return err
		}
		src = stream
	}
	adminCl, _, iid, err := loadAdmin(c, src)
	if err != nil {
		return err
	}
	magic, err := adminCl.DrawLottery(iid, c.Uint64("id"), 5)
	if err != nil {
		return err
	}
	fmt.Println("Magic number:", magic)
	return nil
}

func cmdSetRoot(c *cli.Context) error {
	adminCl, _, iid, err := loadAdmin(c, random.Crypto{})
	if err != nil {
		return err
	}
	root, err := utils.ParseHash(c.String("root"))
	if err != nil {
		return err
	}
	return adminCl.SetMerkleRoot(iid, c.Uint64("id"), root, 5)
}

func cmdBuildRoot(c *cli.Context) error {
	buf, err := ioutil.ReadFile(c.String("winners"))
	if err != nil {
		return err
	}
	tree, addrs, err := buildWinnerTree(string(buf))
	if err != nil {
		return err
	}
	fmt.Printf("Root: %x\n", tree.Root())
	for i, addr := range addrs {
		proof, err := tree.Proof(i)
		if err != nil {
			return err
		}
		sibs := make([]string, len(proof.Siblings))
		for j, s := range proof.Siblings {
			sibs[j] = hex.EncodeToString(s)
		}
		fmt.Printf("%s %s\n", addr.Hex(), strings.Join(sibs, ","))
	}
	return nil
}

func cmdClaim(c *cli.Context) error {
	adminCl, _, iid, err := loadAdmin(c, random.Crypto{})
	if err != nil {
		return err
	}
	addr, err := utils.ParseAddress(c.String("addr"))
	if err != nil {
		return err
	}
	proof := &merkle.Proof{}
	if p := c.String("proof"); p != "" {
		for _, part := range strings.Split(p, ",") {
			sib, err := hex.DecodeString(part)
			if err != nil {
				return xerrors.Errorf("decoding sibling %s: %v", part, err)
			}
			proof.Siblings = append(proof.Siblings, sib)
		}
	}
	err = adminCl.Claim(iid, c.Uint64("id"), addr, proof, 5)
	if err != nil {
		return err
	}
	fmt.Println("Claim verified")
	return nil
}

func cmdGet(c *cli.Context) error {
	_, cl, iid, err := loadAdmin(c, random.Crypto{})
	if err != nil {
		return err
	}
	p, err := cl.GetProject(iid, c.Uint64("id"))
	if err != nil {
		return err
	}
	fmt.Printf("Project %d owner %s supply %d status %s fingerprint %s root %s\n",
		p.ID, p.Owner.Hex(), p.TotalSupply, p.Status, p.Fingerprint.Hex(),
		p.MerkleRoot.Hex())
	return nil
}

func cmdParticipants(c *cli.Context) error {
	_, cl, iid, err := loadAdmin(c, random.Crypto{})
	if err != nil {
		return err
	}
	parts, err := cl.GetParticipants(iid, c.Uint64("id"), c.Uint64("offset"),
		c.Uint64("limit"))
	if err != nil {
		return err
	}
	for _, part := range parts {
		fmt.Printf("%s %d\n", part.Address.Hex(), part.LuckyNum)
	}
	return nil
}

func cmdResult(c *cli.Context) error {
	_, cl, iid, err := loadAdmin(c, random.Crypto{})
	if err != nil {
		return err
	}
	res, err := cl.GetLotteryResult(iid, c.Uint64("id"))
	if err != nil {
		return err
	}
	fmt.Printf("Project %d magic number %d\n", res.ProjectID, res.MagicNumber)
	return nil
}

func cmdEvents(c *cli.Context) error {
	_, cl, iid, err := loadAdmin(c, random.Crypto{})
	if err != nil {
		return err
	}
	reg, err := cl.GetRegistry(iid)
	if err != nil {
		return err
	}
	evs := reg.Events
	if !c.Bool("all") {
		evs = reg.ProjectEvents(c.Uint64("id"))
	}
	for _, ev := range evs {
		fmt.Printf("%s project %d value %d digest %x\n", ev.Name, ev.ProjectID,
			ev.Value, ev.Digest)
	}
	return nil
}

func buildWinnerTree(text string) (*merkle.Tree, []common.Address, error) {
	var addrs []common.Address
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		addr, err := utils.ParseAddress(line)
		if err != nil {
			return nil, nil, err
		}
		addrs = append(addrs, addr)
	}
	tree, err := merkle.NewTreeAddresses(addrs)
	if err != nil {
		return nil, nil, err
	}
	return tree, addrs, nil
}

func loadAdmin(c *cli.Context, src random.Source) (*registry.AdminClient,
	*registry.Client, byzcoin.InstanceID, error) {
	var iid byzcoin.InstanceID
	cfg := Config{}
	_, err := toml.DecodeFile(c.GlobalString("config"), &cfg)
	if err != nil {
		return nil, nil, iid, xerrors.Errorf("reading config: %v", err)
	}
	roster, err := utils.ReadRoster(cfg.Roster)
	if err != nil {
		return nil, nil, iid, err
	}
	byzID, err := hex.DecodeString(cfg.ByzID)
	if err != nil {
		return nil, nil, iid, xerrors.Errorf("decoding byzid: %v", err)
	}
	iidBuf, err := hex.DecodeString(cfg.IID)
	if err != nil {
		return nil, nil, iid, xerrors.Errorf("decoding instance id: %v", err)
	}
	iid = byzcoin.NewInstanceID(iidBuf)
	signer, err := utils.SignerFromHex(cfg.AdminKey)
	if err != nil {
		return nil, nil, iid, err
	}
	bcClient := byzcoin.NewClient(byzID, *roster)
	ctrs, err := bcClient.GetSignerCounters(signer.Identity().String())
	if err != nil {
		return nil, nil, iid, xerrors.Errorf("getting signer counter: %v", err)
	}
	if len(ctrs.Counters) != 1 {
		return nil, nil, iid, xerrors.Errorf("expected one counter, got %d",
			len(ctrs.Counters))
	}
	interval := time.Duration(cfg.Interval) * time.Second
	adminCl := registry.ResumeAdminClient(bcClient, signer, ctrs.Counters[0]+1,
		interval, src)
	return adminCl, adminCl.Cl, iid, nil
}
