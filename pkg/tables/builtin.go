package tables

var builtinFamilies = []Family{
	{
		Match: "NRF",
		Pins: map[int]string{
			21: "GPIO0_UART_RX",
			8:  "GPIO1_UART_TX",
			4:  "GPIO2",
			5:  "GPIO3",
			41: "GPIO4", // P1.09
			26: "GPIO5",
			35: "GPIO6", // P1.03
			11: "GPIO7",
			13: "GPIO8",
			16: "GPIO9",
			12: "GPIO10",
			10: "GPIO11",
			19: "GPIO12",
			20: "GPIO13",
			24: "GPIO14",
			27: "GPIO15",
			23: "PWRGDL",
			7:  "PWRGDH",
			45: "PIN_LED0", // P1.13
			3:  "PIN_LED2",
			40: "I2C_SCL", // P1.08
			6:  "I2C_SDA",
			30: "RTC_INT",
			25: "MAX_INT",
			18: "C2C_CLK",
			17: "C2C_CoPi",
			14: "C2C_CiPo",
			22: "C2C_PSel",
			15: "C2C_GPIO",
			9:  "THRCTRL_H0",
			34: "THRCTRL_H1", // P1.02
			39: "THRCTRL_L0", // P1.07
			36: "THRCTRL_L1", // P1.04
		},
	},
	{
		Match: "MSP",
		Pins: map[int]string{
			22: "GPIO0_UART_RX", // P2.6
			21: "GPIO1_UART_TX", // P2.5
			19: "GPIO2",         // P2.3
			20: "GPIO3",         // P2.4
			38: "GPIO4",         // P4.6
			30: "GPIO5",         // P3.6
			6:  "GPIO6",         // PJ.6
			43: "GPIO7",         // P5.3
			42: "GPIO8",         // P5.2
			41: "GPIO9",         // P5.1
			40: "GPIO10",        // P5.0
			48: "GPIO11",        // P6.0
			49: "GPIO12",        // P6.1
			51: "GPIO13",        // P6.3
			54: "GPIO14",        // P6.6
			55: "GPIO15",        // P6.7
			44: "PWRGDL",        // P5.4
			45: "PWRGDH",        // P5.5
			47: "PIN_LED0",      // P5.7
			0:  "PIN_LED2",      // PJ.0
			53: "I2C_SCL",       // P6.5
			52: "I2C_SDA",       // P6.4
			1:  "MAX_INT",       // PJ.1
			13: "C2C_CLK",       // P1.5
			16: "C2C_CoPi",      // P2.0
			17: "C2C_CiPo",      // P2.1
			12: "C2C_PSel",      // P1.4
			2:  "C2C_GPIO",      // PJ.2
			11: "THRCTRL_H0",    // P1.3
			27: "THRCTRL_H1",    // P3.3
			50: "THRCTRL_L0",    // P6.2
			56: "THRCTRL_L1",    // P7.0
		},
	},
}
